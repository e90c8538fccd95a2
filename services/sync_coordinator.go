package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/guided-traffic/meetup-client/badges"
	"github.com/guided-traffic/meetup-client/models"
)

// BadgeUpdater triggers server-side badge recomputation
type BadgeUpdater interface {
	UpdateAll(ctx context.Context) error
	UpdateBadge(ctx context.Context, badgeCode string) error
}

// BadgeList is the badge collection as the UI sees it. Stale data stays
// visible while a refetch runs; Error reports the latest failed fetch.
type BadgeList struct {
	Badges    []models.BadgeView `json:"badges"`
	Stale     bool               `json:"stale"`
	FetchedAt *time.Time         `json:"fetchedAt,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// SyncCoordinator keeps the cached badge list in step with badge mutations:
// every successful update invalidates the cache and refetches in the
// background.
type SyncCoordinator struct {
	badges  *BadgeService
	updater BadgeUpdater

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewSyncCoordinator creates a coordinator. Background refetches run until
// Close.
func NewSyncCoordinator(b *BadgeService, updater BadgeUpdater) *SyncCoordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &SyncCoordinator{badges: b, updater: updater, ctx: ctx, cancel: cancel}
}

// Badges returns the cached list, fetching synchronously only when nothing
// is cached. A stale entry is returned as is and a refetch is started.
// A failed fetch is flagged on the list when there is cached data to show;
// with nothing cached the error is returned instead.
func (c *SyncCoordinator) Badges(ctx context.Context) (*BadgeList, error) {
	entry, err := c.badges.Cached(ctx)
	if err != nil {
		log.Printf("Badges: Cache read failed: %v", err)
		entry = nil
	}

	if entry == nil {
		list, err := c.badges.Refresh(ctx)
		if errors.Is(err, ErrStaleResponse) {
			// a concurrent refresh won, serve what it cached
			if entry, _ = c.badges.Cached(ctx); entry != nil {
				return c.fromEntry(entry.Badges, entry.Stale, &entry.FetchedAt), nil
			}
		}
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		return c.fromEntry(list, false, &now), nil
	}

	if entry.Stale {
		c.Refetch()
	}
	return c.fromEntry(entry.Badges, entry.Stale, &entry.FetchedAt), nil
}

func (c *SyncCoordinator) fromEntry(list []models.UserBadge, stale bool, fetchedAt *time.Time) *BadgeList {
	out := &BadgeList{Badges: badges.Views(list), Stale: stale, FetchedAt: fetchedAt}
	if err := c.badges.LastError(); err != nil {
		out.Error = err.Error()
	}
	return out
}

// UpdateAll asks the server to recompute every badge, then refetches
func (c *SyncCoordinator) UpdateAll(ctx context.Context) error {
	if err := c.updater.UpdateAll(ctx); err != nil {
		return err
	}
	c.afterMutation(ctx)
	return nil
}

// UpdateBadge asks the server to recompute one badge, then refetches.
// Concurrent calls for the same code are sent independently.
func (c *SyncCoordinator) UpdateBadge(ctx context.Context, badgeCode string) error {
	if err := c.updater.UpdateBadge(ctx, badgeCode); err != nil {
		return err
	}
	c.afterMutation(ctx)
	return nil
}

func (c *SyncCoordinator) afterMutation(ctx context.Context) {
	if err := c.badges.Invalidate(ctx); err != nil {
		log.Printf("Badges: Failed to invalidate cache: %v", err)
	}
	c.Refetch()
}

// Refetch starts a background refresh
func (c *SyncCoordinator) Refetch() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		if _, err := c.badges.Refresh(c.ctx); err != nil && !errors.Is(err, ErrStaleResponse) {
			log.Printf("Badges: Background refetch failed: %v", err)
		}
	}()
}

// Wait blocks until all background refetches have finished
func (c *SyncCoordinator) Wait() {
	c.wg.Wait()
}

// Close cancels background refetches and waits for them
func (c *SyncCoordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}
