package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mycine-gamification/internal/domain"
	"github.com/mycine-gamification/internal/logger"
	"golang.org/x/sync/errgroup"
)

// AchievementService evaluates achievements against user statistics
type AchievementService struct {
	store    AchievementStore
	xp       XPStore
	notifier Notifier
	logger   *logger.Logger
	now      func() time.Time
}

// NewAchievementService creates a new achievement service
func NewAchievementService(store AchievementStore, xp XPStore, notifier Notifier, log *logger.Logger) *AchievementService {
	return &AchievementService{
		store:    store,
		xp:       xp,
		notifier: notifierOrNop(notifier),
		logger:   log.With("component", "achievements"),
		now:      time.Now,
	}
}

// CollectStats gathers the statistics achievements are measured against
func (s *AchievementService) CollectStats(ctx context.Context, userID string) (domain.UserStats, error) {
	var (
		stats  domain.UserStats
		genres int
		level  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = s.store.ReviewStats(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		genres, err = s.store.CountGenresExplored(gctx, userID)
		return err
	})
	g.Go(func() error {
		rec, err := s.xp.GetUserXP(gctx, userID)
		if err != nil {
			return err
		}
		level = domain.LevelForXP(rec.TotalXP)
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.UserStats{}, fmt.Errorf("collecting stats: %w", err)
	}

	stats.GenresExplored = genres
	stats.Level = level
	return stats, nil
}

// List returns the active achievements with the user's progress. It never
// unlocks anything.
func (s *AchievementService) List(ctx context.Context, userID string) ([]domain.AchievementView, error) {
	achievements, unlocks, stats, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]domain.AchievementView, 0, len(achievements))
	for _, a := range achievements {
		var unlock *domain.AchievementUnlock
		if u, ok := unlocks[a.ID]; ok {
			unlock = &u
		}
		views = append(views, domain.NewAchievementView(a, stats, unlock))
	}
	return views, nil
}

// Evaluate unlocks every active achievement the user qualifies for and
// returns the ones unlocked by this call. Concurrent evaluations unlock each
// achievement once.
func (s *AchievementService) Evaluate(ctx context.Context, userID string) ([]domain.Achievement, error) {
	achievements, unlocks, stats, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	unlocked := []domain.Achievement{}
	for _, a := range achievements {
		_, already := unlocks[a.ID]
		if !domain.ShouldUnlock(a, stats, already) {
			continue
		}
		created, err := s.store.UnlockAchievement(ctx, userID, a.ID, now)
		if err != nil {
			return unlocked, fmt.Errorf("unlocking %s: %w", a.Code, err)
		}
		if !created {
			continue
		}
		unlocked = append(unlocked, a)
		s.notifier.NotifyUser(userID, MsgAchievementUnlocked, domain.NewAchievementView(a, stats,
			&domain.AchievementUnlock{UserID: userID, AchievementID: a.ID, UnlockedAt: now}))
		s.logger.Info("achievement unlocked", "user_id", userID, "code", a.Code)
	}
	return unlocked, nil
}

func (s *AchievementService) load(ctx context.Context, userID string) ([]domain.Achievement, map[string]domain.AchievementUnlock, domain.UserStats, error) {
	achievements, err := s.store.ListAchievements(ctx, true)
	if err != nil {
		return nil, nil, domain.UserStats{}, fmt.Errorf("listing achievements: %w", err)
	}
	list, err := s.store.ListUnlocks(ctx, userID)
	if err != nil {
		return nil, nil, domain.UserStats{}, fmt.Errorf("listing unlocks: %w", err)
	}
	unlocks := make(map[string]domain.AchievementUnlock, len(list))
	for _, u := range list {
		unlocks[u.AchievementID] = u
	}
	stats, err := s.CollectStats(ctx, userID)
	if err != nil {
		return nil, nil, domain.UserStats{}, err
	}
	return achievements, unlocks, stats, nil
}

// ListAll returns every achievement definition for the admin console
func (s *AchievementService) ListAll(ctx context.Context) ([]domain.Achievement, error) {
	return s.store.ListAchievements(ctx, false)
}

// Create adds an achievement definition
func (s *AchievementService) Create(ctx context.Context, req domain.AchievementRequest) (*domain.Achievement, error) {
	a := req.ToAchievement(s.now())
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateAchievement(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("achievement created", "code", a.Code)
	return &a, nil
}

// Update replaces the mutable fields of an achievement; the code is kept
func (s *AchievementService) Update(ctx context.Context, achievementID string, req domain.AchievementRequest) (*domain.Achievement, error) {
	existing, err := s.store.GetAchievement(ctx, achievementID)
	if err != nil {
		return nil, err
	}

	a := req.ToAchievement(s.now())
	a.ID = existing.ID
	a.Code = existing.Code
	a.CreatedAt = existing.CreatedAt
	if req.IsActive == nil {
		a.IsActive = existing.IsActive
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.UpdateAchievement(ctx, a); err != nil {
		return nil, err
	}
	return &a, nil
}
