package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/techguru-shop/internal/events"
)

var (
	ErrClosed     = errors.New("kafka producer closed")
	ErrBufferFull = errors.New("kafka producer buffer full")
)

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer implements events.Notifier. Publish only enqueues; a single loop
// drains the inbox to the broker and logs write failures.
type Producer struct {
	w            writer
	inbox        chan kafka.Message
	closeCh      chan struct{}
	log          *slog.Logger
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

var _ events.Notifier = (*Producer)(nil)

func NewProducer(brokers []string, buf int, log *slog.Logger) *Producer {
	return newProducer(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}, buf, log)
}

func newProducer(w writer, buf int, log *slog.Logger) *Producer {
	if buf <= 0 {
		buf = 1
	}
	return &Producer{
		w:            w,
		inbox:        make(chan kafka.Message, buf),
		closeCh:      make(chan struct{}),
		log:          log,
		writeTimeout: 5 * time.Second,
	}
}

func (p *Producer) Start() { go p.loop() }

func (p *Producer) loop() {
	defer close(p.closeCh)
	for m := range p.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
		err := p.w.WriteMessages(ctx, m)
		cancel()
		if err != nil {
			p.log.Warn("kafka write failed", "topic", m.Topic, "key", string(m.Key), "err", err)
		}
	}
	if err := p.w.Close(); err != nil {
		p.log.Warn("kafka writer close", "err", err)
	}
}

// Publish never blocks. The message key is the envelope's correlation id.
func (p *Producer) Publish(_ context.Context, topic, eventName string, payload []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	m := kafka.Message{
		Topic: topic,
		Key:   []byte(events.CorrelationID(payload)),
		Value: payload,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(eventName)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	}
	select {
	case p.inbox <- m:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close stops accepting messages; the loop flushes what is queued and exits.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until the loop started by Start has drained.
func (p *Producer) WaitClosed() { <-p.closeCh }
