package redisx

import (
	"fmt"
	"time"
)

const (
	// Idempotency checkout: idem:order:create:{user_id}:{idempotency_key} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s:%s"

	// Cache stok: stock:product:{product_id} -> jumlah unit available
	KeyStock = "stock:product:%d"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	// lock selama checkout berjalan; cukup lebih lama dari timeout request
	TTLIdemLock = time.Minute
	TTLStock    = time.Minute
	TTLDedup    = 48 * time.Hour
)

func IdemKey(userID, key string) string { return fmt.Sprintf(KeyIdemOrderCreate, userID, key) }

func StockKey(productID int64) string { return fmt.Sprintf(KeyStock, productID) }

func DedupKey(service, eventID string) string { return fmt.Sprintf(KeyDedup, service, eventID) }
