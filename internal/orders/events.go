package orders

import (
	"context"
	"encoding/json"
	"time"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderCancelled = "OrderCancelled"
	EventOrderExpired   = "OrderExpired"
	EventOrderPaid      = "OrderPaid"
)

var eventTopics = map[string]string{
	EventOrderCreated:   TopicOrderCreated,
	EventOrderCancelled: TopicOrderCancelled,
	EventOrderExpired:   TopicOrderExpired,
	EventOrderPaid:      TopicOrderPaid,
}

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// OrderEventPayload dipakai semua event order; consumer cukup butuh product_id untuk invalidasi cache stok.
type OrderEventPayload struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id"`
	Status      string    `json:"status"`
	TotalAmount int64     `json:"total_amount"`
	Items       []ItemQty `json:"items"`
}

func payloadOf(o Order) OrderEventPayload {
	items := make([]ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemQty{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return OrderEventPayload{
		OrderID:     o.ID.String(),
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount,
		Items:       items,
	}
}

type traceKey struct{}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}
