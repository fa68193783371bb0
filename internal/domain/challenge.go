package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChallengeType represents how often a challenge resets
type ChallengeType string

const (
	ChallengeDaily  ChallengeType = "daily"
	ChallengeWeekly ChallengeType = "weekly"
	ChallengeUnique ChallengeType = "unique"
)

// ChallengeTypes lists every type in display order.
var ChallengeTypes = []ChallengeType{ChallengeDaily, ChallengeWeekly, ChallengeUnique}

// Valid reports whether t is a known challenge type.
func (t ChallengeType) Valid() bool {
	return t == ChallengeDaily || t == ChallengeWeekly || t == ChallengeUnique
}

// Resets reports whether progress of this type is periodic.
func (t ChallengeType) Resets() bool {
	return t == ChallengeDaily || t == ChallengeWeekly
}

// PeriodStart returns the start of the period containing now, in UTC.
// Daily periods start at midnight, weekly periods on Monday midnight.
// Unique challenges have no period and return the zero time.
func PeriodStart(t ChallengeType, now time.Time) time.Time {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch t {
	case ChallengeDaily:
		return day
	case ChallengeWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default:
		return time.Time{}
	}
}

// ChallengeStatus is the per-user state of a challenge
type ChallengeStatus string

const (
	StatusInProgress ChallengeStatus = "in_progress"
	StatusCompleted  ChallengeStatus = "completed"
	StatusClaimed    ChallengeStatus = "claimed"
)

// Challenge is an admin-defined goal
type Challenge struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Type        ChallengeType `json:"type"`
	TargetValue int           `json:"target_value"`
	XPReward    int64         `json:"xp_reward"`
	IsActive    bool          `json:"is_active"`
	StartDate   *time.Time    `json:"start_date,omitempty"`
	EndDate     *time.Time    `json:"end_date,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Validate checks the definition invariants.
func (c *Challenge) Validate() error {
	if strings.TrimSpace(c.Name) == "" || !c.Type.Valid() || c.TargetValue <= 0 || c.XPReward < 0 {
		return ErrInvalidChallenge
	}
	if c.StartDate != nil && c.EndDate != nil && c.EndDate.Before(*c.StartDate) {
		return ErrInvalidChallenge
	}
	return nil
}

// Open reports whether the challenge accepts progress at the given time.
func (c *Challenge) Open(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.StartDate != nil && now.Before(*c.StartDate) {
		return false
	}
	if c.EndDate != nil && now.After(*c.EndDate) {
		return false
	}
	return true
}

// ChallengeRequest carries admin input for create and update
type ChallengeRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Type        ChallengeType `json:"type"`
	TargetValue int           `json:"target_value"`
	XPReward    int64         `json:"xp_reward"`
	IsActive    *bool         `json:"is_active,omitempty"`
	StartDate   *time.Time    `json:"start_date,omitempty"`
	EndDate     *time.Time    `json:"end_date,omitempty"`
}

// ToChallenge converts a request to a Challenge. Missing fields are left
// zero for Validate to reject.
func (r *ChallengeRequest) ToChallenge(now time.Time) Challenge {
	c := Challenge{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(r.Name),
		Description: r.Description,
		Type:        r.Type,
		TargetValue: r.TargetValue,
		XPReward:    r.XPReward,
		IsActive:    true,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if r.IsActive != nil {
		c.IsActive = *r.IsActive
	}
	return c
}

// ChallengeProgress is one user's counter for one challenge
type ChallengeProgress struct {
	UserID          string          `json:"user_id"`
	ChallengeID     string          `json:"challenge_id"`
	CurrentProgress int             `json:"current_progress"`
	Status          ChallengeStatus `json:"status"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	ClaimedAt       *time.Time      `json:"claimed_at,omitempty"`
	LastResetAt     *time.Time      `json:"last_reset_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewChallengeProgress returns the implicit state of a user who never
// progressed on a challenge.
func NewChallengeProgress(userID, challengeID string, now time.Time) ChallengeProgress {
	return ChallengeProgress{
		UserID:      userID,
		ChallengeID: challengeID,
		Status:      StatusInProgress,
		LastResetAt: &now,
		UpdatedAt:   now,
	}
}

// NeedsReset reports whether the row belongs to an earlier period.
func (p *ChallengeProgress) NeedsReset(t ChallengeType, now time.Time) bool {
	if !t.Resets() {
		return false
	}
	return p.LastResetAt == nil || p.LastResetAt.Before(PeriodStart(t, now))
}

// Reset returns the row to in_progress with a zero counter.
func (p *ChallengeProgress) Reset(now time.Time) {
	p.CurrentProgress = 0
	p.Status = StatusInProgress
	p.CompletedAt = nil
	p.ClaimedAt = nil
	p.LastResetAt = &now
	p.UpdatedAt = now
}

// ApplyIncrement adds amount to the counter and fires the completion
// transition. The counter is clamped to target. Completed and claimed rows
// are left untouched. It reports whether this call completed the challenge.
func (p *ChallengeProgress) ApplyIncrement(target, amount int, now time.Time) bool {
	if p.Status != StatusInProgress || amount < 0 {
		return false
	}
	p.CurrentProgress += amount
	p.UpdatedAt = now
	if p.CurrentProgress >= target {
		p.CurrentProgress = target
		p.Status = StatusCompleted
		p.CompletedAt = &now
		return true
	}
	return false
}

// Claim moves a completed row to claimed.
func (p *ChallengeProgress) Claim(now time.Time) error {
	switch p.Status {
	case StatusClaimed:
		return ErrChallengeAlreadyClaimed
	case StatusCompleted:
		p.Status = StatusClaimed
		p.ClaimedAt = &now
		p.UpdatedAt = now
		return nil
	default:
		return ErrChallengeNotCompleted
	}
}

// ProgressIncrement asks the tracker to advance matching challenges.
// Exactly one of ChallengeType and ChallengeID selects the targets.
type ProgressIncrement struct {
	UserID        string        `json:"user_id"`
	ChallengeType ChallengeType `json:"challenge_type,omitempty"`
	ChallengeID   string        `json:"challenge_id,omitempty"`
	Amount        int           `json:"amount"`
}

// NewProgressIncrement uses the default amount of 1 when amount is nil.
func NewProgressIncrement(userID string, t ChallengeType, challengeID string, amount *int) ProgressIncrement {
	inc := ProgressIncrement{UserID: userID, ChallengeType: t, ChallengeID: challengeID, Amount: 1}
	if amount != nil {
		inc.Amount = *amount
	}
	return inc
}

// Validate checks the increment input.
func (r ProgressIncrement) Validate() error {
	if r.UserID == "" || r.Amount < 0 {
		return ErrInvalidIncrement
	}
	if (r.ChallengeType == "") == (r.ChallengeID == "") {
		return ErrInvalidIncrement
	}
	if r.ChallengeType != "" && !r.ChallengeType.Valid() {
		return ErrInvalidIncrement
	}
	return nil
}

// ProgressChange describes the effect of an increment on one challenge.
type ProgressChange struct {
	Challenge    Challenge         `json:"challenge"`
	Progress     ChallengeProgress `json:"progress"`
	CompletedNow bool              `json:"completed_now"`
}

// ClaimResult is returned after a successful claim.
type ClaimResult struct {
	Progress ChallengeProgress `json:"progress"`
	Award    *AwardResult      `json:"award"`
}

// ChallengeView merges a definition with the caller's progress.
type ChallengeView struct {
	Challenge
	CurrentProgress int             `json:"current_progress"`
	Status          ChallengeStatus `json:"status"`
	Percent         float64         `json:"percent"`
}

// NewChallengeView builds the view, resetting stale periodic progress for
// display and treating a missing row as fresh.
func NewChallengeView(c Challenge, p *ChallengeProgress, now time.Time) ChallengeView {
	v := ChallengeView{Challenge: c, Status: StatusInProgress}
	if p != nil && !p.NeedsReset(c.Type, now) {
		v.CurrentProgress = p.CurrentProgress
		v.Status = p.Status
	}
	if c.TargetValue > 0 {
		v.Percent = float64(min(v.CurrentProgress, c.TargetValue)) / float64(c.TargetValue) * 100
	}
	return v
}
