package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/guided-traffic/meetup-client/badges"
	"github.com/guided-traffic/meetup-client/cache"
	"github.com/guided-traffic/meetup-client/models"
	"github.com/guided-traffic/meetup-client/repository"
)

// ErrStaleResponse is returned by Refresh when a newer refresh has already
// been applied; the response is dropped.
var ErrStaleResponse = errors.New("stale badge response dropped")

// BadgeFetcher loads the raw badge records of the current user
type BadgeFetcher interface {
	GetBadges(ctx context.Context) ([]models.ServerBadge, error)
}

// BadgeService fetches, normalizes and caches the badge list of one user
type BadgeService struct {
	fetcher BadgeFetcher
	cache   cache.BadgeCache
	states  repository.BadgeStateRepository
	userID  string
	timeout time.Duration
	now     func() time.Time

	// apply serializes snapshot reconciliation and cache replacement
	apply   sync.Mutex
	issued  uint64
	applied uint64

	mu        sync.RWMutex
	lastErr   error
	onUnlock  []func(models.BadgeView)
	onRefresh []func([]models.BadgeView)
}

// NewBadgeService creates a badge service. timeout bounds each fetch.
func NewBadgeService(fetcher BadgeFetcher, c cache.BadgeCache, states repository.BadgeStateRepository, userID string, timeout time.Duration) *BadgeService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BadgeService{
		fetcher: fetcher,
		cache:   c,
		states:  states,
		userID:  userID,
		timeout: timeout,
		now:     time.Now,
	}
}

// OnUnlock registers fn to be called for every badge that moves from
// locked to unlocked
func (s *BadgeService) OnUnlock(fn func(models.BadgeView)) {
	s.mu.Lock()
	s.onUnlock = append(s.onUnlock, fn)
	s.mu.Unlock()
}

// OnRefresh registers fn to be called with every applied badge list
func (s *BadgeService) OnRefresh(fn func([]models.BadgeView)) {
	s.mu.Lock()
	s.onRefresh = append(s.onRefresh, fn)
	s.mu.Unlock()
}

// LastError returns the error of the latest refresh, nil once a refresh
// succeeds
func (s *BadgeService) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Cached returns the cached entry or nil
func (s *BadgeService) Cached(ctx context.Context) (*cache.Entry, error) {
	return s.cache.Get(ctx, s.userID)
}

// Invalidate marks the cached list stale
func (s *BadgeService) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, s.userID)
}

// Refresh fetches the badge list and replaces the cached one. Responses
// are applied in request order: a response that arrives after a newer one
// has been applied is dropped with ErrStaleResponse.
func (s *BadgeService) Refresh(ctx context.Context) ([]models.UserBadge, error) {
	s.apply.Lock()
	s.issued++
	token := s.issued
	s.apply.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	raw, err := s.fetcher.GetBadges(fetchCtx)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, models.ErrTimeout) {
			err = fmt.Errorf("%w: %w", models.ErrTimeout, err)
		}
		s.recordFailure(token, err)
		return nil, err
	}

	list := badges.NormalizeAll(raw)

	s.apply.Lock()
	if token <= s.applied {
		s.apply.Unlock()
		log.Printf("Badges: Dropping stale response %d (applied %d)", token, s.applied)
		return nil, ErrStaleResponse
	}
	list, unlocked, err := s.reconcile(ctx, list)
	if err != nil {
		s.apply.Unlock()
		s.recordFailure(token, err)
		return nil, err
	}
	if err := s.cache.Set(ctx, s.userID, list); err != nil {
		log.Printf("Badges: Failed to cache badge list: %v", err)
	}
	s.applied = token
	s.apply.Unlock()

	s.mu.Lock()
	s.lastErr = nil
	onUnlock := append([]func(models.BadgeView){}, s.onUnlock...)
	onRefresh := append([]func([]models.BadgeView){}, s.onRefresh...)
	s.mu.Unlock()

	for _, b := range unlocked {
		view := badges.View(b)
		for _, fn := range onUnlock {
			fn(view)
		}
	}
	if len(onRefresh) > 0 {
		views := badges.Views(list)
		for _, fn := range onRefresh {
			fn(views)
		}
	}
	return list, nil
}

// reconcile compares the list with the stored snapshot, stamps new unlocks
// and saves the result. It returns the badges that were unlocked.
func (s *BadgeService) reconcile(ctx context.Context, list []models.UserBadge) ([]models.UserBadge, []models.UserBadge, error) {
	prev, err := s.states.Get(ctx, s.userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load badge snapshot: %w", err)
	}

	now := s.now()
	var unlocked []models.UserBadge
	for i, next := range list {
		var p *models.UserBadge
		if b, ok := prev[next.BadgeCode]; ok {
			p = &b
		}
		reconciled, isUnlock := badges.Reconcile(p, next, now)
		list[i] = reconciled
		if isUnlock {
			unlocked = append(unlocked, reconciled)
		}
	}

	if err := s.states.Save(ctx, s.userID, list); err != nil {
		return nil, nil, fmt.Errorf("failed to save badge snapshot: %w", err)
	}
	if len(unlocked) > 0 {
		log.Printf("Badges: %d badge(s) unlocked for user %s", len(unlocked), s.userID)
	}
	return list, unlocked, nil
}

func (s *BadgeService) recordFailure(token uint64, err error) {
	s.apply.Lock()
	superseded := token <= s.applied
	s.apply.Unlock()
	if superseded {
		return
	}

	log.Printf("Badges: Refresh failed: %v", err)
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}
