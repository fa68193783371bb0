package domain

import "time"

// ActivityType selects the operation an ingested event drives
type ActivityType string

const (
	ActivityXPAward              ActivityType = "xp_award"
	ActivityChallengeProgress    ActivityType = "challenge_progress"
	ActivityEvaluateAchievements ActivityType = "evaluate_achievements"
)

// ActivityEvent is the message format consumed from the activity topic
type ActivityEvent struct {
	Type          ActivityType           `json:"type"`
	UserID        string                 `json:"user_id"`
	EventType     XPEventType            `json:"event_type,omitempty"`
	ReferenceID   string                 `json:"reference_id,omitempty"`
	ChallengeType ChallengeType          `json:"challenge_type,omitempty"`
	ChallengeID   string                 `json:"challenge_id,omitempty"`
	Amount        *int                   `json:"amount,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Timestamp     time.Time              `json:"timestamp,omitempty"`
}

// Validate checks the fields required by the event type.
func (e *ActivityEvent) Validate() error {
	if e.UserID == "" {
		return ErrInvalidActivity
	}
	switch e.Type {
	case ActivityXPAward:
		if !e.EventType.Valid() || e.EventType == EventChallengeComplete {
			return ErrInvalidActivity
		}
	case ActivityChallengeProgress:
		if err := e.Increment().Validate(); err != nil {
			return ErrInvalidActivity
		}
	case ActivityEvaluateAchievements:
	default:
		return ErrInvalidActivity
	}
	return nil
}

// Replayable reports whether applying the event twice has the same effect
// as applying it once. Awards are deduplicated by the ledger and unlocks are
// unique per user; challenge increments are not.
func (e *ActivityEvent) Replayable() bool {
	return e.Type == ActivityXPAward || e.Type == ActivityEvaluateAchievements
}

// Award converts an xp_award event to a ledger request.
func (e *ActivityEvent) Award() AwardRequest {
	req := NewAward(e.UserID, e.EventType, e.ReferenceID, e.Timestamp)
	req.Metadata = e.Metadata
	return req
}

// Increment converts a challenge_progress event to a tracker request.
func (e *ActivityEvent) Increment() ProgressIncrement {
	return NewProgressIncrement(e.UserID, e.ChallengeType, e.ChallengeID, e.Amount)
}
