package domain

import (
	"fmt"
	"time"
)

// XPEventType enumerates the actions that grant XP
type XPEventType string

const (
	EventFirstReviewTitle  XPEventType = "first_review_title"
	EventDailyReview       XPEventType = "daily_review"
	EventExtraComment      XPEventType = "extra_comment"
	EventProfileComplete   XPEventType = "profile_complete"
	EventChallengeComplete XPEventType = "challenge_complete"
)

// fixedXP holds the amount granted by every event type except
// challenge_complete, which carries the challenge's own reward.
var fixedXP = map[XPEventType]int64{
	EventFirstReviewTitle: 10,
	EventDailyReview:      5,
	EventExtraComment:     5,
	EventProfileComplete:  50,
}

// Valid reports whether t is a known event type.
func (t XPEventType) Valid() bool {
	switch t {
	case EventFirstReviewTitle, EventDailyReview, EventExtraComment, EventProfileComplete, EventChallengeComplete:
		return true
	}
	return false
}

// NeedsReference reports whether events of this type must point at an entity.
func (t XPEventType) NeedsReference() bool {
	return t == EventFirstReviewTitle || t == EventExtraComment || t == EventChallengeComplete
}

// FixedXPAmount returns the amount for fixed-value event types.
func FixedXPAmount(t XPEventType) (int64, bool) {
	amount, ok := fixedXP[t]
	return amount, ok
}

// XPEvent is one immutable ledger row
type XPEvent struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"user_id"`
	EventType   XPEventType            `json:"event_type"`
	XPAmount    int64                  `json:"xp_amount"`
	ReferenceID string                 `json:"reference_id,omitempty"`
	DedupeKey   string                 `json:"-"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// UserXP is the denormalized running total kept next to the ledger
type UserXP struct {
	UserID    string    `json:"user_id"`
	TotalXP   int64     `json:"total_xp"`
	Level     int       `json:"level"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserXP returns the lazily-created zero record.
func NewUserXP(userID string) UserXP {
	return UserXP{UserID: userID, Level: 1}
}

// AwardRequest asks the ledger to append one event.
type AwardRequest struct {
	UserID      string                 `json:"user_id"`
	EventType   XPEventType            `json:"event_type"`
	Amount      int64                  `json:"xp_amount"`
	ReferenceID string                 `json:"reference_id,omitempty"`
	DedupeKey   string                 `json:"-"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	At          time.Time              `json:"-"`
}

// NewAward builds a request for a fixed-value event type.
func NewAward(userID string, t XPEventType, referenceID string, at time.Time) AwardRequest {
	amount, _ := FixedXPAmount(t)
	return AwardRequest{
		UserID:      userID,
		EventType:   t,
		Amount:      amount,
		ReferenceID: referenceID,
		At:          at,
	}
}

// Validate checks the request and fills the dedupe key and timestamp.
func (r *AwardRequest) Validate() error {
	if r.UserID == "" {
		return ErrInvalidRequest
	}
	if !r.EventType.Valid() {
		return ErrInvalidEventType
	}
	if r.Amount < 0 {
		return ErrInvalidXP
	}
	if fixed, ok := FixedXPAmount(r.EventType); ok && r.Amount != fixed {
		return fmt.Errorf("%w: %s grants %d", ErrInvalidXP, r.EventType, fixed)
	}
	if r.EventType.NeedsReference() && r.ReferenceID == "" {
		return ErrInvalidReference
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	if r.DedupeKey == "" {
		r.DedupeKey = DedupeKey(r.EventType, r.ReferenceID, r.At)
	}
	return nil
}

// DedupeKey returns the value that makes an event unique per user and type.
// The ledger refuses a second event with the same (user, type, key).
func DedupeKey(t XPEventType, referenceID string, at time.Time) string {
	switch t {
	case EventDailyReview:
		return at.UTC().Format("2006-01-02")
	case EventProfileComplete:
		return "profile"
	default:
		return referenceID
	}
}

// ChallengeClaimKey scopes a challenge reward to the period it was earned in.
func ChallengeClaimKey(challengeID string, periodStart time.Time) string {
	if periodStart.IsZero() {
		return challengeID
	}
	return challengeID + "@" + periodStart.UTC().Format(time.RFC3339)
}

// AwardResult reports what the ledger did with an AwardRequest.
// Awarded is false when the event was a duplicate.
type AwardResult struct {
	Awarded       bool     `json:"awarded"`
	Event         *XPEvent `json:"event,omitempty"`
	TotalXP       int64    `json:"total_xp"`
	Level         int      `json:"level"`
	PreviousLevel int      `json:"previous_level"`
}

// LeveledUp reports whether the award crossed a level threshold.
func (r *AwardResult) LeveledUp() bool {
	return r != nil && r.Level > r.PreviousLevel
}
