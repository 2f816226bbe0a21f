package events

import (
	"strings"
	"sync"
)

// Bus is the change-event fabric behind the real-time listeners.
// Handlers run on the bus's own delivery goroutine; subscribers must not
// block in them.
type Bus interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(subject string, data []byte)) (Subscription, error)
}

type Subscription interface {
	Unsubscribe() error
}

// MemoryBus is an in-process Bus used by tests and brokerless local runs.
// Subjects support a trailing "*" wildcard on the last token, matching the
// broker's semantics for the patterns used here.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[int]*memorySub
	nextID int
}

type memorySub struct {
	bus     *MemoryBus
	id      int
	subject string
	handler func(subject string, data []byte)
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]*memorySub)}
}

func (b *MemoryBus) Publish(subject string, data []byte) error {
	b.mu.RLock()
	var matched []*memorySub
	for _, sub := range b.subs {
		if subjectMatches(sub.subject, subject) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		go sub.handler(subject, data)
	}
	return nil
}

func (b *MemoryBus) Subscribe(subject string, handler func(subject string, data []byte)) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &memorySub{bus: b, id: id, subject: subject, handler: handler}
	b.subs[id] = sub
	return sub, nil
}

func (s *memorySub) Unsubscribe() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
	return nil
}

func subjectMatches(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, "*")
		rest := strings.TrimPrefix(subject, prefix)
		return strings.HasPrefix(subject, prefix) && rest != "" && !strings.Contains(rest, ".")
	}
	return false
}
