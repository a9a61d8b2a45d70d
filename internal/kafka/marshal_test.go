package kafka

import (
	"encoding/json"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

type samplePayload struct {
	OrderID string `json:"order_id"`
	Qty     int    `json:"qty"`
}

func TestUnwrapPayload(t *testing.T) {
	raw := json.RawMessage(MustMarshal(samplePayload{OrderID: "o-1", Qty: 2}))

	got, err := UnwrapPayload[samplePayload](raw)
	require.NoError(t, err)
	assert.Equal(t, samplePayload{OrderID: "o-1", Qty: 2}, got)

	_, err = UnwrapPayload[samplePayload](json.RawMessage(`{"qty":"two"}`))
	assert.ErrorContains(t, err, "decode payload")
}

func TestMustMarshal_Panics(t *testing.T) {
	assert.Panics(t, func() { MustMarshal(make(chan int)) })
}

func TestEventHeaders(t *testing.T) {
	m := kafka.Message{Headers: EventHeaders("OrderPaid", 1)}

	assert.Equal(t, "OrderPaid", HeaderValue(m, "x-event-type"))
	assert.Equal(t, "1", HeaderValue(m, "x-event-version"))
	assert.Equal(t, "", HeaderValue(m, "x-missing"))
}
