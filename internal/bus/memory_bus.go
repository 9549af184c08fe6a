// SPDX-License-Identifier: MIT

package bus

import (
	"context"
	"sync"
)

const subscriberBuffer = 64

// MemoryBus is an in-memory pub/sub. It is not durable and provides
// best-effort delivery.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string]map[*memorySubscriber]struct{}
}

// NewMemoryBus creates an empty in-memory bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[*memorySubscriber]struct{})}
}

// Publish delivers msg to every subscriber of topic. Subscribers whose
// buffers are full are skipped to avoid producer blockage.
func (b *MemoryBus) Publish(_ context.Context, topic string, msg Message) error {
	b.mu.RLock()
	targets := make([]*memorySubscriber, 0, len(b.subs[topic]))
	for sub := range b.subs[topic] {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		sub.send(msg)
	}
	return nil
}

// Subscribe registers a new subscriber for topic. The subscription ends
// when ctx is cancelled or Close is called on the subscriber.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	sub := &memorySubscriber{
		bus:   b,
		topic: topic,
		ch:    make(chan Message, subscriberBuffer),
	}

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memorySubscriber]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	b.mu.Unlock()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			_ = sub.Close()
		}()
	}
	return sub, nil
}

// Close detaches every subscriber on every topic.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]map[*memorySubscriber]struct{})
	b.mu.Unlock()

	for _, set := range subs {
		for sub := range set {
			sub.markClosed()
		}
	}
}

type memorySubscriber struct {
	bus   *MemoryBus
	topic string

	mu     sync.Mutex
	ch     chan Message
	closed bool
}

func (s *memorySubscriber) C() <-chan Message { return s.ch }

// send performs a non-blocking delivery, skipping closed subscribers.
// The lock serializes with Close so we never send on a closed channel.
func (s *memorySubscriber) send(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- msg:
	default:
		// drop on backpressure
	}
}

func (s *memorySubscriber) Close() error {
	s.bus.mu.Lock()
	if set := s.bus.subs[s.topic]; set != nil {
		delete(set, s)
		if len(set) == 0 {
			delete(s.bus.subs, s.topic)
		}
	}
	s.bus.mu.Unlock()

	s.markClosed()
	return nil
}

func (s *memorySubscriber) markClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
