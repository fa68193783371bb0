package service

import (
	"context"
	"testing"
	"time"

	"github.com/mycine-gamification/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviews_SubmitAwardsAndProgresses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	daily := f.challenge(t, domain.ChallengeDaily, 1, 25)
	f.challenge(t, domain.ChallengeWeekly, 3, 60)
	f.achievement(t, "First Review", domain.RequirementReviewsCount, 1)

	out, err := f.reviews.Submit(ctx, "u1", domain.ReviewSubmission{
		TitleID: "t1", Rating: 5, Comment: "  A slow burn that pays off beautifully.  ",
	})
	require.NoError(t, err)

	assert.True(t, out.Created)
	assert.Equal(t, "A slow burn that pays off beautifully.", out.Review.Comment)
	assert.Equal(t, int64(20), out.XPGained)
	assert.Len(t, out.Awards, 3)
	assert.Len(t, out.ChallengeChanges, 2)
	assert.Len(t, out.UnlockedAchievements, 1)
	assert.Equal(t, int64(20), out.Progression.TotalXP)

	var dailyChange *domain.ProgressChange
	for i := range out.ChallengeChanges {
		if out.ChallengeChanges[i].Challenge.ID == daily.ID {
			dailyChange = &out.ChallengeChanges[i]
		}
	}
	require.NotNil(t, dailyChange)
	assert.True(t, dailyChange.CompletedNow)
}

func TestReviews_ResubmitDoesNotPayTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.challenge(t, domain.ChallengeUnique, 10, 100)

	_, err := f.reviews.Submit(ctx, "u1", domain.ReviewSubmission{TitleID: "t1", Rating: 3})
	require.NoError(t, err)
	out, err := f.reviews.Submit(ctx, "u1", domain.ReviewSubmission{TitleID: "t1", Rating: 4})
	require.NoError(t, err)

	assert.False(t, out.Created)
	assert.Zero(t, out.XPGained)
	assert.Empty(t, out.ChallengeChanges)
	assert.Equal(t, int64(15), out.Progression.TotalXP)

	views, err := f.challenges.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 1, views[0].CurrentProgress)
}

func TestReviews_DailyReviewOncePerDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.reviews.Submit(ctx, "u1", domain.ReviewSubmission{TitleID: "t1", Rating: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(15), out.XPGained)

	out, err = f.reviews.Submit(ctx, "u1", domain.ReviewSubmission{TitleID: "t2", Rating: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(10), out.XPGained)

	f.advance(24 * time.Hour)
	out, err = f.reviews.Submit(ctx, "u1", domain.ReviewSubmission{TitleID: "t3", Rating: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(15), out.XPGained)
}

func TestReviews_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.reviews.Submit(ctx, "u1", domain.ReviewSubmission{TitleID: "t1", Rating: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidRating)
	_, err = f.reviews.Submit(ctx, "u1", domain.ReviewSubmission{TitleID: "t1", Rating: 4, Comment: "meh"})
	assert.ErrorIs(t, err, domain.ErrCommentTooShort)
	assert.Zero(t, f.store.EventCount("u1"))
}

func TestReviews_DeleteAndModerate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.reviews.Submit(ctx, "u1", domain.ReviewSubmission{TitleID: "t1", Rating: 1})
	require.NoError(t, err)

	entry, err := f.admin.ModerateReview(ctx, "admin", out.Review.ID, domain.ModerationSoftDelete, " spam ")
	require.NoError(t, err)
	assert.Equal(t, "spam", entry.Reason)

	stats, err := f.achievements.CollectStats(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, stats.ReviewsCount)

	_, err = f.admin.ModerateReview(ctx, "admin", out.Review.ID, domain.ModerationRestore, "")
	require.NoError(t, err)
	logs, err := f.admin.ModerationLogs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
	assert.Equal(t, domain.ModerationRestore, logs[0].Action)

	require.NoError(t, f.reviews.Delete(ctx, "u1", "t1"))
	assert.ErrorIs(t, f.reviews.Delete(ctx, "u1", "t1"), domain.ErrReviewNotFound)

	p, err := f.progression.Progress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), p.TotalXP)

	_, err = f.admin.ModerateReview(ctx, "admin", "nope", domain.ModerationRestore, "")
	assert.ErrorIs(t, err, domain.ErrReviewNotFound)
	_, err = f.admin.ModerateReview(ctx, "admin", out.Review.ID, "ban", "")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
