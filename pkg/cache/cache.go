// Package cache stores responses of remote geometry-service calls so repeated
// buffers and projections of the same input skip the network.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cacher defines the caching interface.
type Cacher interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

type entry struct {
	val     []byte
	expires time.Time
}

// Memory is an in-process Cacher with a fixed time to live.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates a memory cache. A ttl of zero keeps entries forever.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory) GetCache(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return append([]byte(nil), e.val...), true
}

func (m *Memory) SetCache(_ context.Context, key string, val []byte) error {
	e := entry{val: append([]byte(nil), val...)}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Nop never stores anything.
type Nop struct{}

func (Nop) GetCache(context.Context, string) ([]byte, bool) { return nil, false }
func (Nop) SetCache(context.Context, string, []byte) error  { return nil }
