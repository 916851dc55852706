package broadcast

import (
	"sync"

	"github.com/nats-io/nats.go"
)

// Bus is the minimal publish/subscribe surface the broadcaster needs.
// Production multi-instance deployments run on NATS; single-instance
// deployments (local store backend) run on the in-process bus.
type Bus interface {
	Publish(subject string, data []byte) error
	// Subscribe registers handler for subject and returns an
	// unsubscribe function.
	Subscribe(subject string, handler func(data []byte)) (func() error, error)
}

// NatsBus carries broadcast envelopes over a shared NATS subject.
type NatsBus struct {
	conn *nats.Conn
}

func NewNatsBus(conn *nats.Conn) *NatsBus {
	return &NatsBus{conn: conn}
}

func (b *NatsBus) Publish(subject string, data []byte) error {
	return b.conn.Publish(subject, data)
}

func (b *NatsBus) Subscribe(subject string, handler func(data []byte)) (func() error, error) {
	sub, err := b.conn.Subscribe(subject, func(m *nats.Msg) {
		handler(m.Data)
	})
	if err != nil {
		return nil, err
	}
	return sub.Unsubscribe, nil
}

// MemoryBus is an in-process Bus. Handlers run synchronously on the
// publishing goroutine.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]func(data []byte)
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]func(data []byte))}
}

func (b *MemoryBus) Publish(subject string, data []byte) error {
	b.mu.RLock()
	handlers := append(([]func([]byte))(nil), b.handlers[subject]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(data)
	}
	return nil
}

func (b *MemoryBus) Subscribe(subject string, handler func(data []byte)) (func() error, error) {
	b.mu.Lock()
	b.handlers[subject] = append(b.handlers[subject], handler)
	idx := len(b.handlers[subject]) - 1
	b.mu.Unlock()

	return func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[subject][idx] = func([]byte) {}
		return nil
	}, nil
}
