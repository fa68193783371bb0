package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mycine-gamification/internal/config"
	"github.com/mycine-gamification/internal/domain"
	"github.com/mycine-gamification/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRebuilder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeRebuilder) Rebuild(_ context.Context, batchSize int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return batchSize, f.err
}

func (f *fakeRebuilder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSyncWorker_RunsOnTicker(t *testing.T) {
	rb := &fakeRebuilder{}
	w := NewSyncWorker(rb, &config.SyncConfig{Interval: 5 * time.Millisecond, BatchSize: 10}, logger.Nop())

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())
	require.Eventually(t, func() bool { return rb.count() >= 2 }, time.Second, time.Millisecond)

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
}

func TestSyncWorker_RunOnceReportsError(t *testing.T) {
	rb := &fakeRebuilder{err: errors.New("redis down")}
	w := NewSyncWorker(rb, &config.SyncConfig{Interval: time.Hour}, logger.Nop())
	assert.Error(t, w.RunOnce(context.Background()))
}

type fakeResetter struct {
	mu    sync.Mutex
	types []domain.ChallengeType
}

func (f *fakeResetter) ResetPeriod(_ context.Context, t domain.ChallengeType) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, t)
	return 0, nil
}

func TestResetScheduler_Config(t *testing.T) {
	_, err := NewResetScheduler(&fakeResetter{}, &config.SchedulerConfig{DailyAt: "25:00", WeeklyDay: "monday"}, logger.Nop())
	assert.Error(t, err)

	_, err = NewResetScheduler(&fakeResetter{}, &config.SchedulerConfig{DailyAt: "00:00:05", WeeklyDay: "someday"}, logger.Nop())
	assert.Error(t, err)

	s, err := NewResetScheduler(&fakeResetter{}, &config.SchedulerConfig{DailyAt: "00:00:05", WeeklyDay: "Monday"}, logger.Nop())
	require.NoError(t, err)
	assert.Len(t, s.scheduler.Jobs(), 2)
	s.Start()
	require.NoError(t, s.Stop())
}

func TestResetScheduler_Reset(t *testing.T) {
	r := &fakeResetter{}
	s, err := NewResetScheduler(r, &config.SchedulerConfig{DailyAt: "00:00:05", WeeklyDay: "monday"}, logger.Nop())
	require.NoError(t, err)

	s.reset(domain.ChallengeWeekly)
	assert.Equal(t, []domain.ChallengeType{domain.ChallengeWeekly}, r.types)
}
