package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/techguru-shop/internal/events"
	"github.com/ariefcatur/techguru-shop/internal/logging"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
	fail   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broker down")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 16, logging.Discard())
	p.Start()

	payload, err := events.Encode(events.OrderCreated, "order-service", "o-1", map[string]string{"orderId": "o-1"})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), events.TopicOrders, events.OrderCreated, payload))
	require.NoError(t, p.Publish(context.Background(), events.TopicOrders, "order.confirmed", payload))

	p.Close()
	p.WaitClosed()

	require.Len(t, w.msgs, 2)
	assert.True(t, w.closed)
	assert.Equal(t, events.TopicOrders, w.msgs[0].Topic)
	assert.Equal(t, "o-1", string(w.msgs[0].Key))
	assert.Equal(t, "x-event-type", w.msgs[1].Headers[0].Key)
	assert.Equal(t, "order.confirmed", string(w.msgs[1].Headers[0].Value))

	assert.ErrorIs(t, p.Publish(context.Background(), events.TopicOrders, events.OrderCreated, payload), ErrClosed)
	p.Close() // second close is a no-op
}

func TestProducerNeverBlocks(t *testing.T) {
	p := newProducer(&fakeWriter{}, 1, logging.Discard())
	require.NoError(t, p.Publish(context.Background(), events.TopicCarts, events.CartCleared, []byte(`{}`)))
	assert.ErrorIs(t, p.Publish(context.Background(), events.TopicCarts, events.CartCleared, []byte(`{}`)), ErrBufferFull)
}

func TestProducerSurvivesWriteFailure(t *testing.T) {
	w := &fakeWriter{fail: true}
	p := newProducer(w, 4, logging.Discard())
	p.Start()
	require.NoError(t, p.Publish(context.Background(), events.TopicUsers, events.UserRegistered, []byte(`{}`)))
	p.Close()
	p.WaitClosed()
	assert.Empty(t, w.msgs)
	assert.True(t, w.closed)
}
