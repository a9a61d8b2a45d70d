package inventory

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-premium-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"time"
)

// StockSource = sumber kebenaran jumlah unit available (Postgres).
type StockSource interface {
	AvailableStock(ctx context.Context, productID int64) (int, error)
}

// StockCache: cache-aside di depan StockSource. Angkanya boleh sedikit basi;
// reservasi tetap diputuskan di database.
type StockCache struct {
	Redis  *redis.Client
	Source StockSource
	TTL    time.Duration
	Log    *zap.Logger
}

func (c *StockCache) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return redisx.TTLStock
}

func (c *StockCache) Available(ctx context.Context, productID int64) (int, error) {
	key := redisx.StockKey(productID)
	n, err := c.Redis.Get(ctx, key).Int()
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.Log.Warn("stock cache read failed", zap.Int64("product_id", productID), zap.Error(err))
	}

	n, err = c.Source.AvailableStock(ctx, productID)
	if err != nil {
		return 0, err
	}
	if err := c.Redis.Set(ctx, key, n, c.ttl()).Err(); err != nil {
		c.Log.Warn("stock cache write failed", zap.Int64("product_id", productID), zap.Error(err))
	}
	return n, nil
}

func (c *StockCache) Invalidate(ctx context.Context, productIDs ...int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, redisx.StockKey(id))
	}
	return c.Redis.Del(ctx, keys...).Err()
}
