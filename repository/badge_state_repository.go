package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/guided-traffic/meetup-client/database"
	"github.com/guided-traffic/meetup-client/models"
)

// BadgeStateRepository stores the last observed state of each badge so an
// unlock can be detected against what the user saw before a restart.
type BadgeStateRepository interface {
	// Get returns the stored states of a user keyed by badge code
	Get(ctx context.Context, userID string) (map[string]models.UserBadge, error)
	// Save upserts the given states; badges not in the list are left alone
	Save(ctx context.Context, userID string, badges []models.UserBadge) error
}

// SQLBadgeStateRepository keeps badge states in the badge_states table
type SQLBadgeStateRepository struct{}

// NewSQLBadgeStateRepository creates a repository on database.DB
func NewSQLBadgeStateRepository() *SQLBadgeStateRepository {
	return &SQLBadgeStateRepository{}
}

// Get loads every stored badge state of a user
func (r *SQLBadgeStateRepository) Get(ctx context.Context, userID string) (map[string]models.UserBadge, error) {
	states := make(map[string]models.UserBadge)
	err := database.WithRetryContext(ctx, func() error {
		rows, err := database.DB.QueryContext(ctx, `
			SELECT badge_code, unlocked, progress, target_value, progress_percentage, unlocked_at
			FROM badge_states WHERE user_id = ?`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				b          models.UserBadge
				unlockedAt sql.NullString
			)
			if err := rows.Scan(&b.BadgeCode, &b.Unlocked, &b.Progress, &b.TargetValue, &b.ProgressPercentage, &unlockedAt); err != nil {
				return fmt.Errorf("failed to scan badge state row: %w", err)
			}
			if unlockedAt.Valid {
				if t, err := time.Parse(time.RFC3339Nano, unlockedAt.String); err == nil {
					b.UnlockedAt = &t
				}
			}
			states[b.BadgeCode] = b
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get badge states: %w", err)
	}
	return states, nil
}

// Save upserts badge states in one transaction
func (r *SQLBadgeStateRepository) Save(ctx context.Context, userID string, badges []models.UserBadge) error {
	if len(badges) == 0 {
		return nil
	}

	query := `
		INSERT INTO badge_states (user_id, badge_code, unlocked, progress, target_value, progress_percentage, unlocked_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, badge_code) DO UPDATE SET
			unlocked = excluded.unlocked,
			progress = excluded.progress,
			target_value = excluded.target_value,
			progress_percentage = excluded.progress_percentage,
			unlocked_at = excluded.unlocked_at,
			updated_at = CURRENT_TIMESTAMP`
	if database.Type() == database.DBTypeMySQL {
		query = `
			INSERT INTO badge_states (user_id, badge_code, unlocked, progress, target_value, progress_percentage, unlocked_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				unlocked = VALUES(unlocked),
				progress = VALUES(progress),
				target_value = VALUES(target_value),
				progress_percentage = VALUES(progress_percentage),
				unlocked_at = VALUES(unlocked_at)`
	}

	err := database.WithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, b := range badges {
			var unlockedAt sql.NullString
			if b.UnlockedAt != nil {
				unlockedAt = sql.NullString{String: b.UnlockedAt.UTC().Format(time.RFC3339Nano), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, userID, b.BadgeCode, b.Unlocked, b.Progress, b.TargetValue, b.ProgressPercentage, unlockedAt); err != nil {
				return fmt.Errorf("badge %s: %w", b.BadgeCode, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save badge states: %w", err)
	}
	return nil
}

// MemoryBadgeStateRepository keeps badge states for the life of the process
type MemoryBadgeStateRepository struct {
	mu     sync.RWMutex
	states map[string]map[string]models.UserBadge
}

// NewMemoryBadgeStateRepository creates an empty in-memory repository
func NewMemoryBadgeStateRepository() *MemoryBadgeStateRepository {
	return &MemoryBadgeStateRepository{states: make(map[string]map[string]models.UserBadge)}
}

func (r *MemoryBadgeStateRepository) Get(ctx context.Context, userID string) (map[string]models.UserBadge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]models.UserBadge, len(r.states[userID]))
	for code, b := range r.states[userID] {
		out[code] = b
	}
	return out, nil
}

func (r *MemoryBadgeStateRepository) Save(ctx context.Context, userID string, badges []models.UserBadge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.states[userID]
	if !ok {
		user = make(map[string]models.UserBadge)
		r.states[userID] = user
	}
	for _, b := range badges {
		if b.UnlockedAt != nil {
			t := *b.UnlockedAt
			b.UnlockedAt = &t
		}
		user[b.BadgeCode] = b
	}
	return nil
}
