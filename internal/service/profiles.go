package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mycine-gamification/internal/domain"
	"github.com/mycine-gamification/internal/logger"
)

// ProfileService manages public profiles and the one-time completion reward
type ProfileService struct {
	store       ProfileStore
	progression *ProgressionService
	evaluator   Evaluator
	ranking     Ranking
	logger      *logger.Logger
	now         func() time.Time
}

// NewProfileService creates a new profile service
func NewProfileService(
	store ProfileStore,
	progression *ProgressionService,
	evaluator Evaluator,
	ranking Ranking,
	log *logger.Logger,
) *ProfileService {
	return &ProfileService{
		store:       store,
		progression: progression,
		evaluator:   evaluator,
		ranking:     ranking,
		logger:      log.With("component", "profiles"),
		now:         time.Now,
	}
}

// Get returns the user's profile, or an empty one if none was saved yet
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return &domain.Profile{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return p, nil
}

// Update saves the profile. Once every field is filled in the user earns
// profile_complete, which the ledger pays only once.
func (s *ProfileService) Update(ctx context.Context, userID string, upd domain.ProfileUpdate) (*domain.Profile, *domain.AwardResult, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	upd.Apply(p, now)
	complete := p.Complete()
	if complete && p.ProfileCompletedAt == nil {
		p.ProfileCompletedAt = &now
	}

	if err := s.store.UpsertProfile(ctx, *p); err != nil {
		return nil, nil, fmt.Errorf("saving profile: %w", err)
	}

	if name := p.DisplayName; name != "" {
		if err := s.ranking.SetDisplayName(ctx, userID, name); err != nil {
			s.logger.Warn("failed to cache display name", "user_id", userID, "error", err)
		}
	}

	if !complete {
		return p, nil, nil
	}
	res, err := s.progression.AwardXP(ctx, domain.NewAward(userID, domain.EventProfileComplete, "", now))
	if err != nil {
		return nil, nil, err
	}
	if res.LeveledUp() && s.evaluator != nil {
		if _, err := s.evaluator.Evaluate(ctx, userID); err != nil {
			s.logger.Warn("achievement evaluation after profile update failed", "user_id", userID, "error", err)
		}
	}
	return p, res, nil
}
