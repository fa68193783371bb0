package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mycine-gamification/internal/domain"
	"github.com/mycine-gamification/internal/logger"
)

const maxEventsLimit = 200

// ProgressionService owns the XP ledger and the derived level and rank
type ProgressionService struct {
	store    XPStore
	ranking  Ranking
	notifier Notifier
	logger   *logger.Logger
	now      func() time.Time
}

// NewProgressionService creates a new progression service
func NewProgressionService(store XPStore, ranking Ranking, notifier Notifier, log *logger.Logger) *ProgressionService {
	return &ProgressionService{
		store:    store,
		ranking:  ranking,
		notifier: notifierOrNop(notifier),
		logger:   log.With("component", "progression"),
		now:      time.Now,
	}
}

// AwardXP appends an event to the ledger. Duplicates are not errors; they
// come back with Awarded=false and nothing is announced.
func (s *ProgressionService) AwardXP(ctx context.Context, req domain.AwardRequest) (*domain.AwardResult, error) {
	if req.At.IsZero() {
		req.At = s.now()
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	res, err := s.store.AwardXP(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("awarding %s: %w", req.EventType, err)
	}
	if res.Awarded {
		s.Announce(ctx, req.UserID, res)
	} else {
		s.logger.Debug("duplicate xp event ignored",
			"user_id", req.UserID,
			"event_type", req.EventType,
			"dedupe_key", req.DedupeKey,
		)
	}
	return res, nil
}

// Announce updates the ranking cache and notifies clients of an award that
// was persisted elsewhere, such as a challenge claim.
func (s *ProgressionService) Announce(ctx context.Context, userID string, res *domain.AwardResult) {
	if res == nil || !res.Awarded {
		return
	}
	if err := s.ranking.SetXP(ctx, userID, res.TotalXP); err != nil {
		// the sync worker repairs the cache
		s.logger.Warn("failed to update ranking", "user_id", userID, "error", err)
	}

	s.notifier.NotifyUser(userID, MsgXPAwarded, res)
	if res.LeveledUp() {
		if p, err := domain.DeriveProgression(res.TotalXP); err == nil {
			s.notifier.NotifyUser(userID, MsgLevelUp, p)
		}
		s.logger.Info("user leveled up", "user_id", userID, "level", res.Level, "previous_level", res.PreviousLevel)
	}
	s.notifier.NotifyLeaderboard(MsgLeaderboardUpdate, domain.NewLeaderboardEntry(0, userID, res.TotalXP))
}

// Progress returns the user's level, rank and progress to the next level
func (s *ProgressionService) Progress(ctx context.Context, userID string) (*domain.Progression, error) {
	rec, err := s.store.GetUserXP(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting user xp: %w", err)
	}
	p, err := domain.DeriveProgression(rec.TotalXP)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Events returns the user's most recent XP events
func (s *ProgressionService) Events(ctx context.Context, userID string, limit int) ([]domain.XPEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > maxEventsLimit {
		limit = maxEventsLimit
	}
	events, err := s.store.ListXPEvents(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing xp events: %w", err)
	}
	return events, nil
}
