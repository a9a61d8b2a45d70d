package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const orderSuffixAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewOrderNumber: ORD-<unix millis>-<6 char acak>. Keunikan dijaga unique index orders.order_number.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), randomSuffix(6))
}

func randomSuffix(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(orderSuffixAlphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = orderSuffixAlphabet[idx.Int64()]
	}
	return string(b)
}
