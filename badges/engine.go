package badges

import (
	"math"
	"strings"
	"time"

	"github.com/guided-traffic/meetup-client/models"
)

// Layouts accepted for unlockedAt. The server sometimes sends local date
// times without a zone, which are read as UTC.
var unlockedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Normalize converts a server badge record into the badge state the
// client works with. Missing or non-finite numbers never leak through:
// progress falls back to 0, a target that is not positive becomes 0, and
// the percentage is always within 0..100.
func Normalize(sb models.ServerBadge) models.UserBadge {
	progress := finiteOrZero(sb.Progress)
	if progress < 0 {
		progress = 0
	}
	target := finiteOrZero(sb.TargetValue)
	if target <= 0 {
		target = 0
	}
	if sb.Unlocked && target > 0 && progress < target {
		progress = target
	}

	b := models.UserBadge{
		ID:          sb.ID,
		BadgeCode:   sb.BadgeCode,
		Name:        sb.Name,
		Description: sb.Description,
		Grade:       models.ParseGrade(strings.ToUpper(strings.TrimSpace(sb.Grade))),
		Category:    models.BadgeCategory(sb.Category),
		Icon:        sb.Icon,
		Unlocked:    sb.Unlocked,
		Progress:    progress,
		TargetValue: target,
	}

	if sb.ProgressPercentage != nil && isFinite(*sb.ProgressPercentage) {
		b.ProgressPercentage = clampPercent(math.Round(*sb.ProgressPercentage))
	} else {
		b.ProgressPercentage = Percentage(progress, target)
	}

	if sb.UnlockedAt != nil {
		b.UnlockedAt = parseUnlockedAt(*sb.UnlockedAt)
	}
	return b
}

// NormalizeAll normalizes a list, keeping its order
func NormalizeAll(sbs []models.ServerBadge) []models.UserBadge {
	out := make([]models.UserBadge, 0, len(sbs))
	for _, sb := range sbs {
		out = append(out, Normalize(sb))
	}
	return out
}

// Percentage computes clamp(round(progress/target*100), 0, 100), and 0
// when there is no target
func Percentage(progress, target float64) int {
	if !isFinite(progress) || !isFinite(target) || target <= 0 {
		return 0
	}
	return clampPercent(math.Round(progress / target * 100))
}

// DetectUnlock reports the unlock transition: the previous state was
// known and locked, the next one is unlocked
func DetectUnlock(prev *models.UserBadge, next models.UserBadge) bool {
	return prev != nil && !prev.Unlocked && next.Unlocked
}

// Reconcile carries the unlock timestamp across refetches. An unlocked
// badge always leaves with a timestamp: the stored one when there is one,
// else the server value, else now. An already stamped value is never
// replaced. The second return value reports the transition.
func Reconcile(prev *models.UserBadge, next models.UserBadge, now time.Time) (models.UserBadge, bool) {
	unlocked := DetectUnlock(prev, next)

	switch {
	case !next.Unlocked:
		next.UnlockedAt = nil
	case prev != nil && prev.Unlocked && prev.UnlockedAt != nil:
		t := *prev.UnlockedAt
		next.UnlockedAt = &t
	case next.UnlockedAt == nil:
		t := now.UTC()
		next.UnlockedAt = &t
	}
	return next, unlocked
}

// View pairs a badge with its display glyph
func View(b models.UserBadge) models.BadgeView {
	return models.BadgeView{UserBadge: b, DisplayIcon: ResolveIcon(b)}
}

// Views resolves display glyphs for a list
func Views(bs []models.UserBadge) []models.BadgeView {
	out := make([]models.BadgeView, 0, len(bs))
	for _, b := range bs {
		out = append(out, View(b))
	}
	return out
}

func parseUnlockedAt(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range unlockedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func finiteOrZero(v *float64) float64 {
	if v == nil || !isFinite(*v) {
		return 0
	}
	return *v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clampPercent(p float64) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return int(p)
}
