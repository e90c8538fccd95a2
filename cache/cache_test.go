package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/guided-traffic/meetup-client/models"
)

func TestClampTTL(t *testing.T) {
	if ClampTTL(-1) != 5*time.Minute {
		t.Fatal("negative should fall back to the default")
	}
	if ClampTTL(time.Hour) != time.Hour {
		t.Fatal("1h should pass")
	}
	if ClampTTL(48*time.Hour) != MaxTTL {
		t.Fatal(">24h should clamp")
	}
}

// exerciseCache runs the behavior every BadgeCache must share
func exerciseCache(t *testing.T, c BadgeCache, userID string) {
	t.Helper()
	ctx := context.Background()

	e, err := c.Get(ctx, userID)
	if err != nil || e != nil {
		t.Fatalf("expected miss, got %+v %v", e, err)
	}

	// invalidating a missing entry is a no-op
	if err := c.Invalidate(ctx, userID); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	badges := []models.UserBadge{{BadgeCode: "HOST_1", Grade: models.GradeRare, ProgressPercentage: 40}}
	if err := c.Set(ctx, userID, badges); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	e, err = c.Get(ctx, userID)
	if err != nil || e == nil {
		t.Fatalf("expected hit, got %+v %v", e, err)
	}
	if e.Stale || len(e.Badges) != 1 || e.Badges[0].Grade != models.GradeRare {
		t.Fatalf("unexpected entry: %+v", e)
	}

	if err := c.Invalidate(ctx, userID); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	e, _ = c.Get(ctx, userID)
	if e == nil || !e.Stale || len(e.Badges) != 1 {
		t.Fatalf("invalidated entry should stay readable and stale: %+v", e)
	}

	// a fresh Set clears the stale mark
	c.Set(ctx, userID, badges)
	e, _ = c.Get(ctx, userID)
	if e.Stale {
		t.Fatalf("fresh entry reported stale")
	}
}

func TestMemoryBadgeCache(t *testing.T) {
	exerciseCache(t, NewMemoryBadgeCache(time.Minute), "1")
}

func TestMemoryBadgeCache_Expiry(t *testing.T) {
	c := NewMemoryBadgeCache(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(context.Background(), "1", []models.UserBadge{{BadgeCode: "A"}})
	now = now.Add(2 * time.Minute)

	e, _ := c.Get(context.Background(), "1")
	if e == nil || !e.Stale {
		t.Fatalf("expired entry should be served stale, got %+v", e)
	}
}

func TestMemoryBadgeCache_ReturnsCopies(t *testing.T) {
	c := NewMemoryBadgeCache(time.Minute)
	c.Set(context.Background(), "1", []models.UserBadge{{BadgeCode: "A"}})

	e, _ := c.Get(context.Background(), "1")
	e.Badges[0].BadgeCode = "changed"

	e, _ = c.Get(context.Background(), "1")
	if e.Badges[0].BadgeCode != "A" {
		t.Fatalf("cache entry was mutated through a returned copy")
	}
}

func TestRedisBadgeCache(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set, skipping redis test")
	}

	c, err := NewRedisBadgeCache(context.Background(), redisURL, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisBadgeCache failed: %v", err)
	}
	defer c.Close()

	userID := "test-" + uuid.NewString()
	defer c.rdb.Del(context.Background(), keyPrefix+userID, keyPrefix+userID+":stale")
	exerciseCache(t, c, userID)
}
