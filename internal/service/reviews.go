package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mycine-gamification/internal/domain"
	"github.com/mycine-gamification/internal/logger"
)

// ReviewService stores reviews and drives the gamification steps a review
// triggers
type ReviewService struct {
	store        ReviewStore
	progression  *ProgressionService
	challenges   *ChallengeService
	achievements *AchievementService
	logger       *logger.Logger
	now          func() time.Time
}

// NewReviewService creates a new review service
func NewReviewService(
	store ReviewStore,
	progression *ProgressionService,
	challenges *ChallengeService,
	achievements *AchievementService,
	log *logger.Logger,
) *ReviewService {
	return &ReviewService{
		store:        store,
		progression:  progression,
		challenges:   challenges,
		achievements: achievements,
		logger:       log.With("component", "reviews"),
		now:          time.Now,
	}
}

// Submit stores the user's review of a title and then awards XP, advances
// challenges and evaluates achievements. Every award is deduplicated by the
// ledger, so resubmitting the same review never pays twice. Challenges only
// advance when the review is new.
func (s *ReviewService) Submit(ctx context.Context, userID string, sub domain.ReviewSubmission) (*domain.ReviewOutcome, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	now := s.now()

	saved, created, err := s.store.UpsertReview(ctx, domain.Review{
		ID:        uuid.NewString(),
		UserID:    userID,
		TitleID:   sub.TitleID,
		Rating:    sub.Rating,
		Comment:   sub.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("saving review: %w", err)
	}

	outcome := &domain.ReviewOutcome{
		Review:               *saved,
		Created:              created,
		Awards:               []domain.AwardResult{},
		ChallengeChanges:     []domain.ProgressChange{},
		UnlockedAchievements: []domain.Achievement{},
	}

	awards := []domain.AwardRequest{
		domain.NewAward(userID, domain.EventFirstReviewTitle, sub.TitleID, now),
		domain.NewAward(userID, domain.EventDailyReview, "", now),
	}
	if saved.HasComment() {
		awards = append(awards, domain.NewAward(userID, domain.EventExtraComment, sub.TitleID, now))
	}
	for _, req := range awards {
		req.Metadata = map[string]interface{}{"title_id": sub.TitleID, "review_id": saved.ID}
		res, err := s.progression.AwardXP(ctx, req)
		if err != nil {
			return nil, err
		}
		outcome.Awards = append(outcome.Awards, *res)
		if res.Awarded {
			outcome.XPGained += res.Event.XPAmount
		}
	}

	if created {
		for _, t := range domain.ChallengeTypes {
			changes, err := s.challenges.Increment(ctx, domain.NewProgressIncrement(userID, t, "", nil))
			if err != nil {
				return nil, err
			}
			outcome.ChallengeChanges = append(outcome.ChallengeChanges, changes...)
		}
	}

	unlocked, err := s.achievements.Evaluate(ctx, userID)
	if err != nil {
		return nil, err
	}
	outcome.UnlockedAchievements = unlocked

	progress, err := s.progression.Progress(ctx, userID)
	if err != nil {
		return nil, err
	}
	outcome.Progression = *progress

	s.logger.Info("review submitted",
		"user_id", userID,
		"title_id", sub.TitleID,
		"created", created,
		"xp_gained", outcome.XPGained,
	)
	return outcome, nil
}

// Delete soft-deletes the user's review of a title. XP already earned is
// kept; the ledger is append-only.
func (s *ReviewService) Delete(ctx context.Context, userID, titleID string) error {
	if err := s.store.DeleteReview(ctx, userID, titleID, s.now()); err != nil {
		return err
	}
	s.logger.Info("review deleted", "user_id", userID, "title_id", titleID)
	return nil
}
