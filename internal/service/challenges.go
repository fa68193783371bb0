package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mycine-gamification/internal/domain"
	"github.com/mycine-gamification/internal/logger"
)

// ChallengeService tracks per-user challenge progress and claims
type ChallengeService struct {
	store       ChallengeStore
	progression *ProgressionService
	evaluator   Evaluator
	notifier    Notifier
	logger      *logger.Logger
	now         func() time.Time
}

// NewChallengeService creates a new challenge service
func NewChallengeService(
	store ChallengeStore,
	progression *ProgressionService,
	evaluator Evaluator,
	notifier Notifier,
	log *logger.Logger,
) *ChallengeService {
	return &ChallengeService{
		store:       store,
		progression: progression,
		evaluator:   evaluator,
		notifier:    notifierOrNop(notifier),
		logger:      log.With("component", "challenges"),
		now:         time.Now,
	}
}

// List merges the active challenges with the user's progress. Users without
// a row, or with a row from an earlier period, see a fresh challenge.
func (s *ChallengeService) List(ctx context.Context, userID string) ([]domain.ChallengeView, error) {
	now := s.now()
	challenges, err := s.store.ListActiveChallenges(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("listing challenges: %w", err)
	}
	rows, err := s.store.ListChallengeProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing progress: %w", err)
	}

	byChallenge := make(map[string]*domain.ChallengeProgress, len(rows))
	for i := range rows {
		byChallenge[rows[i].ChallengeID] = &rows[i]
	}

	views := make([]domain.ChallengeView, 0, len(challenges))
	for _, c := range challenges {
		views = append(views, domain.NewChallengeView(c, byChallenge[c.ID], now))
	}
	return views, nil
}

// Increment advances the challenges selected by inc
func (s *ChallengeService) Increment(ctx context.Context, inc domain.ProgressIncrement) ([]domain.ProgressChange, error) {
	if err := inc.Validate(); err != nil {
		return nil, err
	}
	changes, err := s.store.IncrementChallengeProgress(ctx, inc, s.now())
	if err != nil {
		return nil, err
	}

	for _, ch := range changes {
		s.notifier.NotifyUser(inc.UserID, MsgChallengeProgress, ch)
		if ch.CompletedNow {
			s.logger.Info("challenge completed",
				"user_id", inc.UserID,
				"challenge_id", ch.Challenge.ID,
				"type", ch.Challenge.Type,
			)
		}
	}
	return changes, nil
}

// Claim collects the reward of a completed challenge
func (s *ChallengeService) Claim(ctx context.Context, userID, challengeID string) (*domain.ClaimResult, error) {
	res, err := s.store.ClaimChallenge(ctx, userID, challengeID, s.now())
	if err != nil {
		return nil, err
	}

	s.progression.Announce(ctx, userID, res.Award)
	s.notifier.NotifyUser(userID, MsgChallengeProgress, res.Progress)
	s.logger.Info("challenge claimed", "user_id", userID, "challenge_id", challengeID)

	if res.Award.LeveledUp() && s.evaluator != nil {
		if _, err := s.evaluator.Evaluate(ctx, userID); err != nil {
			s.logger.Warn("achievement evaluation after claim failed", "user_id", userID, "error", err)
		}
	}
	return res, nil
}

// Initialize creates progress rows for every active challenge
func (s *ChallengeService) Initialize(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.InitializeUserChallenges(ctx, userID, s.now())
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ResetPeriod resets every row of a periodic type left over from an
// earlier period
func (s *ChallengeService) ResetPeriod(ctx context.Context, t domain.ChallengeType) (int64, error) {
	if !t.Resets() {
		return 0, domain.ErrInvalidRequest
	}
	now := s.now()
	n, err := s.store.ResetExpiredProgress(ctx, t, domain.PeriodStart(t, now), now)
	if err != nil {
		return 0, err
	}
	s.logger.Info("challenge progress reset", "type", t, "rows", n)
	return n, nil
}

// ListAll returns every challenge definition for the admin console
func (s *ChallengeService) ListAll(ctx context.Context) ([]domain.Challenge, error) {
	return s.store.ListChallenges(ctx)
}

// Create adds a challenge definition
func (s *ChallengeService) Create(ctx context.Context, req domain.ChallengeRequest) (*domain.Challenge, error) {
	c := req.ToChallenge(s.now())
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateChallenge(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("challenge created", "challenge_id", c.ID, "type", c.Type)
	return &c, nil
}

// Update replaces a challenge definition
func (s *ChallengeService) Update(ctx context.Context, challengeID string, req domain.ChallengeRequest) (*domain.Challenge, error) {
	existing, err := s.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	c := req.ToChallenge(s.now())
	c.ID = existing.ID
	c.CreatedAt = existing.CreatedAt
	if req.IsActive == nil {
		c.IsActive = existing.IsActive
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.UpdateChallenge(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete removes a challenge, or deactivates it once progress exists
func (s *ChallengeService) Delete(ctx context.Context, challengeID string) (deactivated bool, err error) {
	deactivated, err = s.store.DeleteChallenge(ctx, challengeID, s.now())
	if err != nil {
		return false, err
	}
	s.logger.Info("challenge removed", "challenge_id", challengeID, "deactivated", deactivated)
	return deactivated, nil
}
