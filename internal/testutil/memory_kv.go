package testutil

import (
	"context"
	"sync"
	"time"
)

// MemoryKV is an in-process KV for tests. Set FailSet or FailGet to inject
// backend errors; Block makes every call wait for context cancellation.
// SetDelay makes Set land late, ignoring the context deadline.
type MemoryKV struct {
	mu       sync.Mutex
	data     map[string]string
	FailGet  error
	FailSet  error
	Block    bool
	SetDelay time.Duration
	Sets     int
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	if m.Block {
		<-ctx.Done()
		return "", false, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailGet != nil {
		return "", false, m.FailGet
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(ctx context.Context, key, value string) error {
	if m.Block {
		<-ctx.Done()
		return ctx.Err()
	}
	if m.SetDelay > 0 {
		time.Sleep(m.SetDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSet != nil {
		return m.FailSet
	}
	m.Sets++
	m.data[key] = value
	return nil
}

// Raw returns the stored string for key.
func (m *MemoryKV) Raw(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

// Put seeds a raw document.
func (m *MemoryKV) Put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// SetCount returns how many successful writes happened.
func (m *MemoryKV) SetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Sets
}
