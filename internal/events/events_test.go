package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderPayload struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

func TestEncodeDecode(t *testing.T) {
	b, err := Encode(OrderCreated, "order-service", "o-1", orderPayload{OrderID: "o-1", Status: "pending"})
	require.NoError(t, err)

	env, p, err := Decode[orderPayload](b)
	require.NoError(t, err)
	assert.Equal(t, OrderCreated, env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "order-service", env.Producer)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, "pending", p.Status)
	assert.Equal(t, "o-1", CorrelationID(b))
}

func TestOrderStatusEvent(t *testing.T) {
	assert.Equal(t, "order.confirmed", OrderStatusEvent("confirmed"))
	assert.Empty(t, CorrelationID([]byte("not json")))
}
