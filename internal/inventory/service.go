package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	kafkax "github.com/ariefcatur/go-premium-orders/internal/kafka"
	"github.com/ariefcatur/go-premium-orders/internal/orders"
	"github.com/ariefcatur/go-premium-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Service menjaga cache stok tetap jujur berdasarkan event order.
type Service struct {
	Cache       *StockCache
	Redis       *redis.Client
	ServiceName string
	Log         *zap.Logger
}

// HandleOrderEvent: dipasang sebagai handler consumer untuk semua topic order.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// pesan rusak tidak akan pernah sukses, commit saja
		s.Log.Error("drop undecodable event", zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	switch env.EventType {
	case orders.EventOrderCreated, orders.EventOrderCancelled, orders.EventOrderExpired, orders.EventOrderPaid:
	default:
		return nil
	}

	// 2) dedup via Redis (pakai event_id)
	dkey := redisx.DedupKey(s.ServiceName, env.EventID)
	first, err := redisx.Claim(ctx, s.Redis, dkey, "1", redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		return nil
	}

	// 3) decode payload
	p, err := kafkax.UnwrapPayload[orders.OrderEventPayload](env.Payload)
	if err != nil {
		s.Log.Error("drop event with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	// 4) invalidasi cache produk yang tersentuh
	if err := s.Cache.Invalidate(ctx, productIDs(p.Items)...); err != nil {
		// lepas dedup supaya redelivery diproses ulang
		_ = s.Redis.Del(ctx, dkey).Err()
		return fmt.Errorf("invalidate stock cache: %w", err)
	}
	s.Log.Debug("stock cache invalidated",
		zap.String("event_type", env.EventType),
		zap.String("order_id", p.OrderID),
		zap.String("trace_id", env.TraceID))
	return nil
}

func productIDs(items []orders.ItemQty) []int64 {
	seen := make(map[int64]bool, len(items))
	out := make([]int64, 0, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			out = append(out, it.ProductID)
		}
	}
	return out
}
