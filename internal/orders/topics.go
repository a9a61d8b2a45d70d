package orders

import "github.com/google/uuid"

const (
	TopicOrderCreated   = "order.created"
	TopicOrderCancelled = "order.cancelled"
	TopicOrderExpired   = "order.expired"
	TopicOrderPaid      = "order.paid"
)

var AllTopics = []string{TopicOrderCreated, TopicOrderCancelled, TopicOrderExpired, TopicOrderPaid}

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID uuid.UUID) []byte { return []byte(orderID.String()) }
