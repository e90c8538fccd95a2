package services

import (
	"context"
	"sync"
	"time"

	"github.com/guided-traffic/meetup-client/cache"
	"github.com/guided-traffic/meetup-client/models"
	"github.com/guided-traffic/meetup-client/repository"
)

type fetchResult struct {
	badges []models.ServerBadge
	err    error
}

// fakeFetcher serves queued results in order, repeating the last one.
// A gate registered for a call index holds that call until released.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	results []fetchResult
	gates   map[int]chan struct{}
	block   bool
}

func (f *fakeFetcher) GetBadges(ctx context.Context) ([]models.ServerBadge, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	var r fetchResult
	if len(f.results) > 0 {
		r = f.results[min(i, len(f.results)-1)]
	}
	gate := f.gates[i]
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.badges, r.err
}

func (f *fakeFetcher) push(r fetchResult) {
	f.mu.Lock()
	f.results = append(f.results, r)
	f.mu.Unlock()
}

func (f *fakeFetcher) hold(call int) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gates == nil {
		f.gates = make(map[int]chan struct{})
	}
	ch := make(chan struct{})
	f.gates[call] = ch
	return ch
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeUpdater struct {
	mu    sync.Mutex
	all   int
	codes []string
	err   error
}

func (u *fakeUpdater) UpdateAll(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.all++
	return u.err
}

func (u *fakeUpdater) UpdateBadge(ctx context.Context, code string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.codes = append(u.codes, code)
	return u.err
}

func sb(code string, unlocked bool, progress, target float64) models.ServerBadge {
	return models.ServerBadge{
		BadgeCode:   code,
		Name:        code,
		Grade:       "rare",
		Category:    "HOST",
		Unlocked:    unlocked,
		Progress:    &progress,
		TargetValue: &target,
	}
}

var fixedNow = time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)

func newTestService(f *fakeFetcher, repo repository.BadgeStateRepository) *BadgeService {
	s := NewBadgeService(f, cache.NewMemoryBadgeCache(time.Minute), repo, "42", time.Second)
	s.now = func() time.Time { return fixedNow }
	return s
}

func waitFor(t interface {
	Helper()
	Fatalf(string, ...any)
}, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}
