package notify

import (
	"context"
	"sync"
)

// MemoryNotifier collects notifications for tests.
type MemoryNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

// NewMemory builds an empty in-memory notifier.
func NewMemory() *MemoryNotifier { return &MemoryNotifier{} }

// FailWith makes subsequent Notify calls return err after recording.
func (m *MemoryNotifier) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MemoryNotifier) Notify(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return m.err
}

// Sent returns a copy of the notifications delivered so far.
func (m *MemoryNotifier) Sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notification, len(m.sent))
	copy(out, m.sent)
	return out
}
