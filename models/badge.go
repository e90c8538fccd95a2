package models

import "time"

// BadgeGrade is the rarity of a badge, ordered ascending
type BadgeGrade int

const (
	GradeCommon BadgeGrade = iota
	GradeRare
	GradeEpic
	GradeLegendary
)

var gradeNames = map[BadgeGrade]string{
	GradeCommon:    "COMMON",
	GradeRare:      "RARE",
	GradeEpic:      "EPIC",
	GradeLegendary: "LEGENDARY",
}

// String returns the wire name of the grade
func (g BadgeGrade) String() string {
	if name, ok := gradeNames[g]; ok {
		return name
	}
	return gradeNames[GradeCommon]
}

// MarshalText encodes the grade by name
func (g BadgeGrade) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText decodes a grade name
func (g *BadgeGrade) UnmarshalText(text []byte) error {
	*g = ParseGrade(string(text))
	return nil
}

// ParseGrade converts a server grade string, unknown values become COMMON
func ParseGrade(s string) BadgeGrade {
	for grade, name := range gradeNames {
		if name == s {
			return grade
		}
	}
	return GradeCommon
}

// BadgeCategory groups badges by what they reward
type BadgeCategory string

const (
	CategoryParticipation BadgeCategory = "PARTICIPATION"
	CategoryAI            BadgeCategory = "AI"
	CategoryDistance      BadgeCategory = "DISTANCE"
	CategoryTime          BadgeCategory = "TIME"
	CategoryPersonality   BadgeCategory = "PERSONALITY"
	CategoryCategory      BadgeCategory = "CATEGORY"
	CategoryReview        BadgeCategory = "REVIEW"
	CategorySocial        BadgeCategory = "SOCIAL"
	CategoryHost          BadgeCategory = "HOST"
	CategorySpecial       BadgeCategory = "SPECIAL"
)

// ServerBadge is a badge record exactly as GET /api/badges returns it.
// Numeric fields are pointers because the server may omit them.
type ServerBadge struct {
	ID                 int64    `json:"id"`
	BadgeCode          string   `json:"badgeCode"`
	Name               string   `json:"name"`
	Description        string   `json:"description,omitempty"`
	Grade              string   `json:"grade"`
	Category           string   `json:"category"`
	Icon               string   `json:"icon,omitempty"`
	Unlocked           bool     `json:"unlocked"`
	Progress           *float64 `json:"progress,omitempty"`
	TargetValue        *float64 `json:"targetValue,omitempty"`
	ProgressPercentage *float64 `json:"progressPercentage,omitempty"`
	UnlockedAt         *string  `json:"unlockedAt,omitempty"`
}

// UserBadge is the normalized badge state of the current user
type UserBadge struct {
	ID                 int64         `json:"id"`
	BadgeCode          string        `json:"badgeCode"`
	Name               string        `json:"name"`
	Description        string        `json:"description,omitempty"`
	Grade              BadgeGrade    `json:"grade"`
	Category           BadgeCategory `json:"category"`
	Icon               string        `json:"icon,omitempty"`
	Unlocked           bool          `json:"unlocked"`
	Progress           float64       `json:"progress"`
	TargetValue        float64       `json:"targetValue"`
	ProgressPercentage int           `json:"progressPercentage"`
	UnlockedAt         *time.Time    `json:"unlockedAt,omitempty"`
}

// BadgeView is a badge with its resolved display glyph
type BadgeView struct {
	UserBadge
	DisplayIcon string `json:"displayIcon"`
}
