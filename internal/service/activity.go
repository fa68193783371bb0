package service

import (
	"context"
	"fmt"

	"github.com/mycine-gamification/internal/domain"
	"github.com/mycine-gamification/internal/logger"
)

// ActivityService applies activity events ingested from the message bus
type ActivityService struct {
	progression  *ProgressionService
	challenges   *ChallengeService
	achievements *AchievementService
	logger       *logger.Logger
}

// NewActivityService creates a new activity service
func NewActivityService(
	progression *ProgressionService,
	challenges *ChallengeService,
	achievements *AchievementService,
	log *logger.Logger,
) *ActivityService {
	return &ActivityService{
		progression:  progression,
		challenges:   challenges,
		achievements: achievements,
		logger:       log.With("component", "activity"),
	}
}

// Handle dispatches one event to the operation its type names
func (s *ActivityService) Handle(ctx context.Context, ev domain.ActivityEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	switch ev.Type {
	case domain.ActivityXPAward:
		res, err := s.progression.AwardXP(ctx, ev.Award())
		if err != nil {
			return err
		}
		if res.LeveledUp() {
			if _, err := s.achievements.Evaluate(ctx, ev.UserID); err != nil {
				return err
			}
		}
	case domain.ActivityChallengeProgress:
		if _, err := s.challenges.Increment(ctx, ev.Increment()); err != nil {
			return err
		}
	case domain.ActivityEvaluateAchievements:
		if _, err := s.achievements.Evaluate(ctx, ev.UserID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s", domain.ErrInvalidActivity, ev.Type)
	}
	return nil
}
