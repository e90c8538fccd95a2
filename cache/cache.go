package cache

import (
	"context"
	"sync"
	"time"

	"github.com/guided-traffic/meetup-client/models"
)

// MaxTTL bounds how long a badge list may be served without a refetch
const MaxTTL = 24 * time.Hour

// Entry is a cached badge list. Stale entries are still served while a
// refetch is in flight.
type Entry struct {
	Badges    []models.UserBadge `json:"badges"`
	FetchedAt time.Time          `json:"fetchedAt"`
	ExpiresAt time.Time          `json:"expiresAt"`
	Stale     bool               `json:"stale"`
}

// BadgeCache stores the badge list per user
type BadgeCache interface {
	// Get returns nil without error when nothing is cached
	Get(ctx context.Context, userID string) (*Entry, error)
	Set(ctx context.Context, userID string, badges []models.UserBadge) error
	// Invalidate marks the entry stale but keeps it readable
	Invalidate(ctx context.Context, userID string) error
}

// ClampTTL keeps a configured TTL within (0, MaxTTL]
func ClampTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Minute
	}
	if d > MaxTTL {
		return MaxTTL
	}
	return d
}

// MemoryBadgeCache keeps entries in process memory
type MemoryBadgeCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryBadgeCache creates an in-memory cache
func NewMemoryBadgeCache(ttl time.Duration) *MemoryBadgeCache {
	return &MemoryBadgeCache{
		entries: make(map[string]*Entry),
		ttl:     ClampTTL(ttl),
		now:     time.Now,
	}
}

func (c *MemoryBadgeCache) Get(ctx context.Context, userID string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[userID]
	if !ok {
		return nil, nil
	}
	out := *e
	out.Badges = append([]models.UserBadge(nil), e.Badges...)
	if c.now().After(out.ExpiresAt) {
		out.Stale = true
	}
	return &out, nil
}

func (c *MemoryBadgeCache) Set(ctx context.Context, userID string, badges []models.UserBadge) error {
	now := c.now()
	c.mu.Lock()
	c.entries[userID] = &Entry{
		Badges:    append([]models.UserBadge(nil), badges...),
		FetchedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}
	c.mu.Unlock()
	return nil
}

func (c *MemoryBadgeCache) Invalidate(ctx context.Context, userID string) error {
	c.mu.Lock()
	if e, ok := c.entries[userID]; ok {
		e.Stale = true
	}
	c.mu.Unlock()
	return nil
}
