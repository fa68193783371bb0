package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mycine-gamification/internal/config"
	"github.com/mycine-gamification/internal/domain"
	"github.com/mycine-gamification/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	failures int
	err      error
	calls    []domain.ActivityEvent
}

func (f *fakeHandler) Handle(_ context.Context, ev domain.ActivityEvent) error {
	f.calls = append(f.calls, ev)
	if f.failures > 0 {
		f.failures--
		return f.err
	}
	return nil
}

// committingHandler applies every event, then reports a failure the first
// time, like a commit that outlives its context deadline.
type committingHandler struct {
	failOnce   bool
	increments int
	calls      int
}

func (h *committingHandler) Handle(_ context.Context, ev domain.ActivityEvent) error {
	h.calls++
	if ev.Type == domain.ActivityChallengeProgress {
		h.increments += ev.Increment().Amount
	}
	if h.failOnce {
		h.failOnce = false
		return context.DeadlineExceeded
	}
	return nil
}

func newTestConsumer(h ActivityHandler) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		config:  &config.KafkaConfig{RetryAttempts: 3, RetryDelay: time.Millisecond, BatchSize: 10},
		handler: h,
		logger:  logger.Nop(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func TestParseActivity(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"xp award", `{"type":"xp_award","user_id":"u1","event_type":"extra_comment","reference_id":"t1"}`, false},
		{"progress by type", `{"type":"challenge_progress","user_id":"u1","challenge_type":"daily","amount":2}`, false},
		{"evaluate", `{"type":"evaluate_achievements","user_id":"u1"}`, false},
		{"bad json", `{"type":`, true},
		{"missing user", `{"type":"evaluate_achievements"}`, true},
		{"challenge reward through award", `{"type":"xp_award","user_id":"u1","event_type":"challenge_complete","reference_id":"c1"}`, true},
		{"both selectors", `{"type":"challenge_progress","user_id":"u1","challenge_type":"daily","challenge_id":"c1"}`, true},
		{"unknown type", `{"type":"watch","user_id":"u1"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseActivity([]byte(tt.value))
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidActivity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", ev.UserID)
		})
	}
}

func TestParseActivity_DefaultIncrement(t *testing.T) {
	ev, err := ParseActivity([]byte(`{"type":"challenge_progress","user_id":"u1","challenge_id":"c1"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, ev.Increment().Amount)
}

func TestConsumer_RetriesTransientErrors(t *testing.T) {
	h := &fakeHandler{failures: 2, err: errors.New("connection reset")}
	c := newTestConsumer(h)

	applied := c.process([]domain.ActivityEvent{{Type: domain.ActivityEvaluateAchievements, UserID: "u1"}})
	assert.Equal(t, 1, applied)
	assert.Len(t, h.calls, 3)
}

func TestConsumer_DoesNotRetryValidationErrors(t *testing.T) {
	h := &fakeHandler{failures: 5, err: domain.ErrInvalidIncrement}
	c := newTestConsumer(h)

	applied := c.process([]domain.ActivityEvent{
		{Type: domain.ActivityEvaluateAchievements, UserID: "u1"},
		{Type: domain.ActivityEvaluateAchievements, UserID: "u2"},
	})
	assert.Zero(t, applied)
	assert.Len(t, h.calls, 2)
}

func TestConsumer_DoesNotReplayChallengeProgress(t *testing.T) {
	h := &committingHandler{failOnce: true}
	c := newTestConsumer(h)

	applied := c.process([]domain.ActivityEvent{
		{Type: domain.ActivityChallengeProgress, UserID: "u1", ChallengeID: "c1"},
	})
	assert.Zero(t, applied)
	assert.Equal(t, 1, h.calls)
	assert.Equal(t, 1, h.increments)
}

func TestConsumer_ReplaysDeduplicatedAwards(t *testing.T) {
	h := &committingHandler{failOnce: true}
	c := newTestConsumer(h)

	applied := c.process([]domain.ActivityEvent{
		{Type: domain.ActivityXPAward, UserID: "u1", EventType: domain.EventDailyReview},
	})
	assert.Equal(t, 1, applied)
	assert.Equal(t, 2, h.calls)
}

func TestConsumer_RetryWaitStopsOnShutdown(t *testing.T) {
	h := &fakeHandler{failures: 5, err: errors.New("connection reset")}
	c := newTestConsumer(h)
	c.config.RetryDelay = time.Hour
	c.cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.handleWithRetry(domain.ActivityEvent{Type: domain.ActivityEvaluateAchievements, UserID: "u1"})
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Len(t, h.calls, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not stop on shutdown")
	}
}
