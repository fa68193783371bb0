package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Rating bounds and comment length rule
const (
	MinRating        = 1
	MaxRating        = 5
	MinCommentLength = 20

	HighRatingFloor = 5
	LowRatingCeil   = 2
)

// Review is a user's rating of a title
type Review struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TitleID   string    `json:"title_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasComment reports whether the review carries a non-blank comment.
func (r *Review) HasComment() bool {
	return strings.TrimSpace(r.Comment) != ""
}

// ReviewSubmission is the body of a review request
type ReviewSubmission struct {
	TitleID string `json:"title_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// Validate checks rating bounds and comment length.
func (s *ReviewSubmission) Validate() error {
	if strings.TrimSpace(s.TitleID) == "" {
		return ErrInvalidRequest
	}
	if s.Rating < MinRating || s.Rating > MaxRating {
		return ErrInvalidRating
	}
	s.Comment = strings.TrimSpace(s.Comment)
	if s.Comment != "" && utf8.RuneCountInString(s.Comment) < MinCommentLength {
		return ErrCommentTooShort
	}
	return nil
}

// ReviewOutcome summarises everything a review submission caused.
type ReviewOutcome struct {
	Review               Review           `json:"review"`
	Created              bool             `json:"created"`
	Awards               []AwardResult    `json:"awards"`
	XPGained             int64            `json:"xp_gained"`
	Progression          Progression      `json:"progression"`
	ChallengeChanges     []ProgressChange `json:"challenge_changes"`
	UnlockedAchievements []Achievement    `json:"unlocked_achievements"`
}

// ModerationAction is what an admin did to a review
type ModerationAction string

const (
	ModerationSoftDelete ModerationAction = "soft_delete"
	ModerationRestore    ModerationAction = "restore"
)

// ModerationLog records an admin action
type ModerationLog struct {
	ID         string           `json:"id"`
	AdminID    string           `json:"admin_id"`
	TargetID   string           `json:"target_id"`
	TargetType string           `json:"target_type"`
	Action     ModerationAction `json:"action"`
	Reason     string           `json:"reason,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// DashboardStats feeds the admin dashboard
type DashboardStats struct {
	ReviewsToday     int64   `json:"reviews_today"`
	ActiveUsersToday int64   `json:"active_users_today"`
	AverageXP        float64 `json:"average_xp"`
	TotalUsers       int64   `json:"total_users"`
	TotalTitles      int64   `json:"total_titles"`
}
