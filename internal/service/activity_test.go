package service

import (
	"context"
	"testing"

	"github.com/mycine-gamification/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivity_Dispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.challenge(t, domain.ChallengeWeekly, 2, 10)
	f.achievement(t, "Reviewer", domain.RequirementReviewsCount, 1)

	require.NoError(t, f.activity.Handle(ctx, domain.ActivityEvent{
		Type: domain.ActivityXPAward, UserID: "u1", EventType: domain.EventExtraComment, ReferenceID: "t9",
	}))
	p, err := f.progression.Progress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.TotalXP)

	two := 2
	require.NoError(t, f.activity.Handle(ctx, domain.ActivityEvent{
		Type: domain.ActivityChallengeProgress, UserID: "u1", ChallengeID: c.ID, Amount: &two,
	}))
	views, err := f.challenges.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.StatusCompleted, views[0].Status)

	_, _, err = f.store.UpsertReview(ctx, domain.Review{ID: "r1", UserID: "u1", TitleID: "t9", Rating: 3})
	require.NoError(t, err)
	require.NoError(t, f.activity.Handle(ctx, domain.ActivityEvent{Type: domain.ActivityEvaluateAchievements, UserID: "u1"}))
	assert.Equal(t, 1, f.store.UnlockCount("u1"))

	err = f.activity.Handle(ctx, domain.ActivityEvent{Type: "watch", UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrInvalidActivity)
}

func TestAdmin_DashboardAndRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.GrantRole("boss", domain.RoleAdmin)

	ok, err := f.admin.IsAdmin(ctx, "boss")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.admin.IsAdmin(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.reviews.Submit(ctx, "u1", domain.ReviewSubmission{TitleID: "t1", Rating: 4})
	require.NoError(t, err)
	_, err = f.reviews.Submit(ctx, "u2", domain.ReviewSubmission{TitleID: "t1", Rating: 2})
	require.NoError(t, err)

	stats, err := f.admin.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ReviewsToday)
	assert.Equal(t, int64(2), stats.ActiveUsersToday)
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, 15.0, stats.AverageXP)
}
