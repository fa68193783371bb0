package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// RequirementType names the statistic an achievement is measured against
type RequirementType string

const (
	RequirementReviewsCount   RequirementType = "reviews_count"
	RequirementLevel          RequirementType = "level"
	RequirementHighRatings    RequirementType = "high_ratings"
	RequirementLowRatings     RequirementType = "low_ratings"
	RequirementCommentsCount  RequirementType = "comments_count"
	RequirementGenresExplored RequirementType = "genres_explored"
)

// Valid reports whether t is a known requirement type.
func (t RequirementType) Valid() bool {
	switch t {
	case RequirementReviewsCount, RequirementLevel, RequirementHighRatings,
		RequirementLowRatings, RequirementCommentsCount, RequirementGenresExplored:
		return true
	}
	return false
}

// Rarity is a presentation label derived from the XP reward
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// RarityFor classifies an XP reward.
func RarityFor(xpReward int64) Rarity {
	switch {
	case xpReward >= 300:
		return RarityLegendary
	case xpReward >= 150:
		return RarityEpic
	case xpReward >= 75:
		return RarityRare
	default:
		return RarityCommon
	}
}

// Achievement is a permanent, statistic-triggered unlock
type Achievement struct {
	ID               string          `json:"id"`
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	Icon             string          `json:"icon,omitempty"`
	RequirementType  RequirementType `json:"requirement_type"`
	RequirementValue int             `json:"requirement_value"`
	XPReward         int64           `json:"xp_reward"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Validate checks the definition invariants.
func (a *Achievement) Validate() error {
	if a.Code == "" || strings.TrimSpace(a.Name) == "" || !a.RequirementType.Valid() ||
		a.RequirementValue <= 0 || a.XPReward < 0 {
		return ErrInvalidAchievement
	}
	return nil
}

// AchievementRequest carries admin input for create and update
type AchievementRequest struct {
	Code             string          `json:"code,omitempty"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	Icon             string          `json:"icon,omitempty"`
	RequirementType  RequirementType `json:"requirement_type"`
	RequirementValue int             `json:"requirement_value"`
	XPReward         int64           `json:"xp_reward"`
	IsActive         *bool           `json:"is_active,omitempty"`
}

// ToAchievement converts a request to an Achievement; the code defaults to
// a slug of the name.
func (r *AchievementRequest) ToAchievement(now time.Time) Achievement {
	a := Achievement{
		ID:               uuid.NewString(),
		Code:             r.Code,
		Name:             strings.TrimSpace(r.Name),
		Description:      r.Description,
		Icon:             r.Icon,
		RequirementType:  r.RequirementType,
		RequirementValue: r.RequirementValue,
		XPReward:         r.XPReward,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if a.Code == "" {
		a.Code = slug.Make(a.Name)
	}
	if r.IsActive != nil {
		a.IsActive = *r.IsActive
	}
	return a
}

// AchievementUnlock records that a user earned an achievement
type AchievementUnlock struct {
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

// UserStats holds the statistics achievements are evaluated against.
// It is collected per request and passed in explicitly.
type UserStats struct {
	ReviewsCount   int `json:"reviews_count"`
	Level          int `json:"level"`
	HighRatings    int `json:"high_ratings"`
	LowRatings     int `json:"low_ratings"`
	CommentsCount  int `json:"comments_count"`
	GenresExplored int `json:"genres_explored"`
}

// Stat returns the statistic for a requirement type.
func (s UserStats) Stat(t RequirementType) int {
	switch t {
	case RequirementReviewsCount:
		return s.ReviewsCount
	case RequirementLevel:
		return s.Level
	case RequirementHighRatings:
		return s.HighRatings
	case RequirementLowRatings:
		return s.LowRatings
	case RequirementCommentsCount:
		return s.CommentsCount
	case RequirementGenresExplored:
		return s.GenresExplored
	}
	return 0
}

// AchievementProgress returns min(stat, requirement).
func AchievementProgress(a Achievement, stats UserStats) int {
	return min(stats.Stat(a.RequirementType), a.RequirementValue)
}

// ShouldUnlock reports whether a not-yet-unlocked achievement qualifies.
func ShouldUnlock(a Achievement, stats UserStats, alreadyUnlocked bool) bool {
	return !alreadyUnlocked && AchievementProgress(a, stats) >= a.RequirementValue
}

// AchievementView is an achievement with the caller's progress.
type AchievementView struct {
	Achievement
	Progress   int        `json:"progress"`
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
	Rarity     Rarity     `json:"rarity"`
}

// NewAchievementView builds the read-only view.
func NewAchievementView(a Achievement, stats UserStats, unlock *AchievementUnlock) AchievementView {
	v := AchievementView{
		Achievement: a,
		Progress:    AchievementProgress(a, stats),
		Rarity:      RarityFor(a.XPReward),
	}
	if unlock != nil {
		v.Unlocked = true
		at := unlock.UnlockedAt
		v.UnlockedAt = &at
	}
	return v
}
