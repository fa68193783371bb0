package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/mycine-gamification/internal/config"
	"github.com/mycine-gamification/internal/domain"
	"github.com/mycine-gamification/internal/logger"
)

// PeriodResetter resets periodic challenge progress
type PeriodResetter interface {
	ResetPeriod(ctx context.Context, t domain.ChallengeType) (int64, error)
}

// ResetScheduler runs the daily and weekly challenge resets. Stale rows are
// also reset lazily on access; the jobs keep the table tidy.
type ResetScheduler struct {
	challenges PeriodResetter
	config     *config.SchedulerConfig
	logger     *logger.Logger
	scheduler  gocron.Scheduler
}

// NewResetScheduler creates the scheduler and registers its jobs in UTC
func NewResetScheduler(challenges PeriodResetter, cfg *config.SchedulerConfig, log *logger.Logger) (*ResetScheduler, error) {
	at, err := parseAtTime(cfg.DailyAt)
	if err != nil {
		return nil, err
	}
	weekday, err := parseWeekday(cfg.WeeklyDay)
	if err != nil {
		return nil, err
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	s := &ResetScheduler{
		challenges: challenges,
		config:     cfg,
		logger:     log.With("component", "reset_scheduler"),
		scheduler:  sched,
	}

	if _, err := sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(at)),
		gocron.NewTask(s.reset, domain.ChallengeDaily),
		gocron.WithName("daily-challenge-reset"),
	); err != nil {
		return nil, fmt.Errorf("registering daily reset: %w", err)
	}
	if _, err := sched.NewJob(
		gocron.WeeklyJob(1, gocron.NewWeekdays(weekday), gocron.NewAtTimes(at)),
		gocron.NewTask(s.reset, domain.ChallengeWeekly),
		gocron.WithName("weekly-challenge-reset"),
	); err != nil {
		return nil, fmt.Errorf("registering weekly reset: %w", err)
	}
	return s, nil
}

// Start starts the scheduler
func (s *ResetScheduler) Start() {
	s.scheduler.Start()
	s.logger.Info("reset scheduler started", "daily_at", s.config.DailyAt, "weekly_day", s.config.WeeklyDay)
}

// Stop waits for running jobs and stops the scheduler
func (s *ResetScheduler) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *ResetScheduler) reset(t domain.ChallengeType) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.challenges.ResetPeriod(ctx, t); err != nil {
		s.logger.Error("challenge reset failed", "type", t, "error", err)
	}
}

func parseAtTime(v string) (gocron.AtTime, error) {
	t, err := time.Parse("15:04:05", v)
	if err != nil {
		return nil, fmt.Errorf("scheduler.daily_at %q: %w", v, err)
	}
	return gocron.NewAtTime(uint(t.Hour()), uint(t.Minute()), uint(t.Second())), nil
}

func parseWeekday(v string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), v) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("scheduler.weekly_day %q is not a weekday", v)
}
