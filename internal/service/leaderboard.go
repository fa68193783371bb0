package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mycine-gamification/internal/config"
	"github.com/mycine-gamification/internal/domain"
	"github.com/mycine-gamification/internal/logger"
)

// LeaderboardService serves the global XP ranking
type LeaderboardService struct {
	ranking  Ranking
	xp       XPStore
	profiles ProfileStore
	config   *config.LeaderboardConfig
	logger   *logger.Logger
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(
	ranking Ranking,
	xp XPStore,
	profiles ProfileStore,
	cfg *config.LeaderboardConfig,
	log *logger.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		ranking:  ranking,
		xp:       xp,
		profiles: profiles,
		config:   cfg,
		logger:   log.With("component", "leaderboard"),
	}
}

// Top returns the n users with the most XP
func (s *LeaderboardService) Top(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		n = s.config.DefaultLimit
	}
	if n > s.config.MaxLimit {
		n = s.config.MaxLimit
	}

	entries, err := s.ranking.TopN(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("getting top n from ranking: %w", err)
	}
	s.attachNames(ctx, entries)
	return entries, nil
}

// Position returns the user's place in the ranking. Users without XP are
// reported with position 0.
func (s *LeaderboardService) Position(ctx context.Context, userID string) (*domain.LeaderboardEntry, error) {
	entry, err := s.ranking.UserRank(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		rec, err := s.xp.GetUserXP(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("getting user xp: %w", err)
		}
		e := domain.NewLeaderboardEntry(0, userID, rec.TotalXP)
		entry = &e
	} else if err != nil {
		return nil, fmt.Errorf("getting user rank: %w", err)
	}

	entries := []domain.LeaderboardEntry{*entry}
	s.attachNames(ctx, entries)
	return &entries[0], nil
}

// Stats summarises the ranking
func (s *LeaderboardService) Stats(ctx context.Context) (*domain.LeaderboardStats, error) {
	total, err := s.ranking.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}
	diamond, err := s.ranking.CountAtLeast(ctx, domain.LevelThresholds[domain.MaxLevel-1])
	if err != nil {
		return nil, fmt.Errorf("counting diamond users: %w", err)
	}
	stats := &domain.LeaderboardStats{TotalUsers: total, DiamondUsers: diamond}
	top, err := s.ranking.TopN(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("getting top user: %w", err)
	}
	if len(top) > 0 {
		stats.TopXP = top[0].TotalXP
	}
	return stats, nil
}

// Rebuild reloads the ranking from the ledger totals
func (s *LeaderboardService) Rebuild(ctx context.Context, batchSize int) (int, error) {
	totals, err := s.xp.AllUserXP(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading totals: %w", err)
	}
	if err := s.ranking.Rebuild(ctx, totals, batchSize); err != nil {
		return 0, fmt.Errorf("rebuilding ranking: %w", err)
	}
	return len(totals), nil
}

// attachNames fills display names from the cache, falling back to the
// profile store for misses. Failures leave names empty.
func (s *LeaderboardService) attachNames(ctx context.Context, entries []domain.LeaderboardEntry) {
	if len(entries) == 0 {
		return
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}

	names, err := s.ranking.DisplayNames(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to read cached display names", "error", err)
		names = map[string]string{}
	}

	var missing []string
	for _, id := range ids {
		if _, ok := names[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		found, err := s.profiles.GetDisplayNames(ctx, missing)
		if err != nil {
			s.logger.Warn("failed to load display names", "error", err)
		}
		for id, name := range found {
			names[id] = name
			if err := s.ranking.SetDisplayName(ctx, id, name); err != nil {
				s.logger.Debug("failed to cache display name", "user_id", id, "error", err)
			}
		}
	}

	for i := range entries {
		entries[i].DisplayName = names[entries[i].UserID]
	}
}
