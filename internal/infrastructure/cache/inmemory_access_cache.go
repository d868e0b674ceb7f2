package cache

import (
	"context"
	"sync"
	"time"

	"github.com/govcon/backend/internal/domain/entitlement"
)

// InMemoryAccessCache is a map-backed access cache for tests and local
// development. Semantics mirror the Redis implementation, including the
// first-write-wins behavior on Grant.
type InMemoryAccessCache struct {
	mu      sync.RWMutex
	entries map[string]entitlement.CacheEntry
}

// NewInMemoryAccessCache creates an empty in-memory access cache
func NewInMemoryAccessCache() *InMemoryAccessCache {
	return &InMemoryAccessCache{entries: make(map[string]entitlement.CacheEntry)}
}

func (c *InMemoryAccessCache) Grant(_ context.Context, family entitlement.CacheFamily, email string, entry entitlement.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := accessKey(family, email)
	if _, ok := c.entries[key]; ok {
		return nil
	}
	entry.Email = entitlement.NormalizeEmail(email)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	c.entries[key] = entry
	return nil
}

func (c *InMemoryAccessCache) GrantDatabaseAccess(_ context.Context, email string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := accessKey(entitlement.FamilyDatabaseAccess, email)
	if existing, ok := c.entries[key]; ok {
		return existing.Token, false, nil
	}

	token := newAccessToken()
	now := time.Now()
	normalized := entitlement.NormalizeEmail(email)
	c.entries[key] = entitlement.CacheEntry{Email: normalized, Token: token, CreatedAt: now}
	c.entries[accessKey(entitlement.FamilyDatabaseToken, token)] = entitlement.CacheEntry{Email: normalized, Token: token, CreatedAt: now}
	return token, true, nil
}

func (c *InMemoryAccessCache) HasAccess(_ context.Context, family entitlement.CacheFamily, email string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.entries[accessKey(family, email)]
	return ok, nil
}

func (c *InMemoryAccessCache) GetEntry(_ context.Context, family entitlement.CacheFamily, email string) (*entitlement.CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[accessKey(family, email)]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *InMemoryAccessCache) ListFamily(_ context.Context, family entitlement.CacheFamily) ([]entitlement.CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	prefix := string(family) + ":"
	var entries []entitlement.CacheEntry
	for key, entry := range c.entries {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

var _ entitlement.AccessCache = (*InMemoryAccessCache)(nil)
