package cache

import (
	"context"
	"sync"
	"time"

	appcert "github.com/afp/backend/internal/application/certification"
)

// InMemoryFileGuard implements InFlightGuard with a process-local map.
// It only protects against duplicate deliveries within one instance.
type InMemoryFileGuard struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]time.Time
}

// NewInMemoryFileGuard creates a guard whose claims expire after ttl
func NewInMemoryFileGuard(ttl time.Duration) *InMemoryFileGuard {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &InMemoryFileGuard{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
}

// TryAcquire claims key unless an unexpired claim exists
func (g *InMemoryFileGuard) TryAcquire(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if expiresAt, ok := g.entries[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	g.entries[key] = now.Add(g.ttl)
	return true, nil
}

// Release drops the claim on key
func (g *InMemoryFileGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, key)
	return nil
}

// Ensure InMemoryFileGuard implements InFlightGuard
var _ appcert.InFlightGuard = (*InMemoryFileGuard)(nil)
