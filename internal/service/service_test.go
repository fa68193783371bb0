package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mycine-gamification/internal/config"
	"github.com/mycine-gamification/internal/domain"
	"github.com/mycine-gamification/internal/logger"
	"github.com/mycine-gamification/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store        *testutil.MemStore
	ranking      *testutil.MemRanking
	notifier     *testutil.RecordingNotifier
	progression  *ProgressionService
	challenges   *ChallengeService
	achievements *AchievementService
	reviews      *ReviewService
	profiles     *ProfileService
	leaderboard  *LeaderboardService
	admin        *AdminService
	activity     *ActivityService
	clock        *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Nop()
	f := &fixture{
		store:    testutil.NewMemStore(),
		ranking:  testutil.NewMemRanking(),
		notifier: &testutil.RecordingNotifier{},
	}
	// Wednesday
	now := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	f.clock = &now
	clock := func() time.Time { return *f.clock }

	cfg := config.DefaultConfig()
	f.progression = NewProgressionService(f.store, f.ranking, f.notifier, log)
	f.achievements = NewAchievementService(f.store, f.store, f.notifier, log)
	f.challenges = NewChallengeService(f.store, f.progression, f.achievements, f.notifier, log)
	f.reviews = NewReviewService(f.store, f.progression, f.challenges, f.achievements, log)
	f.profiles = NewProfileService(f.store, f.progression, f.achievements, f.ranking, log)
	f.leaderboard = NewLeaderboardService(f.ranking, f.store, f.store, &cfg.Leaderboard, log)
	f.admin = NewAdminService(f.store, f.store, log)
	f.activity = NewActivityService(f.progression, f.challenges, f.achievements, log)

	f.progression.now = clock
	f.achievements.now = clock
	f.challenges.now = clock
	f.reviews.now = clock
	f.profiles.now = clock
	f.admin.now = clock
	return f
}

func (f *fixture) advance(d time.Duration) {
	next := f.clock.Add(d)
	f.clock = &next
}

func (f *fixture) challenge(t *testing.T, typ domain.ChallengeType, target int, reward int64) domain.Challenge {
	t.Helper()
	c, err := f.challenges.Create(context.Background(), domain.ChallengeRequest{
		Name: "watch " + string(typ), Type: typ, TargetValue: target, XPReward: reward,
	})
	require.NoError(t, err)
	return *c
}

func (f *fixture) achievement(t *testing.T, name string, rt domain.RequirementType, value int) domain.Achievement {
	t.Helper()
	a, err := f.achievements.Create(context.Background(), domain.AchievementRequest{
		Name: name, RequirementType: rt, RequirementValue: value, XPReward: 100,
	})
	require.NoError(t, err)
	return *a
}

func TestProgression_ConcurrentDuplicateAwardsPersistOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	awarded := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.progression.AwardXP(ctx, domain.NewAward("u1", domain.EventFirstReviewTitle, "title_X", time.Time{}))
			if !assert.NoError(t, err) {
				return
			}
			if res.Awarded {
				mu.Lock()
				awarded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, awarded)
	assert.Equal(t, 1, f.store.EventCount("u1"))

	p, err := f.progression.Progress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.TotalXP)
}

func TestProgression_AwardAnnouncesAndRanks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.progression.AwardXP(ctx, domain.NewAward("u1", domain.EventProfileComplete, "", time.Time{}))
	require.NoError(t, err)
	assert.True(t, res.Awarded)

	score, ok := f.ranking.Score("u1")
	require.True(t, ok)
	assert.Equal(t, int64(50), score)
	assert.Equal(t, []string{MsgXPAwarded}, f.notifier.Types("u1"))
	assert.Equal(t, 1, f.notifier.LeaderboardCount())

	res, err = f.progression.AwardXP(ctx, domain.NewAward("u1", domain.EventProfileComplete, "", time.Time{}))
	require.NoError(t, err)
	assert.False(t, res.Awarded)
	assert.Equal(t, int64(50), res.TotalXP)
	assert.Len(t, f.notifier.Types("u1"), 1)
}

func TestProgression_RejectsInvalidAward(t *testing.T) {
	f := newFixture(t)
	req := domain.NewAward("u1", domain.EventDailyReview, "", time.Time{})
	req.Amount = 1000
	_, err := f.progression.AwardXP(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidXP)
	assert.Zero(t, f.store.EventCount("u1"))
}

func TestChallenges_CompletionGrantsNoXPUntilClaimed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.challenge(t, domain.ChallengeUnique, 5, 150)

	four, two := 4, 2
	_, err := f.challenges.Increment(ctx, domain.NewProgressIncrement("u1", "", c.ID, &four))
	require.NoError(t, err)
	changes, err := f.challenges.Increment(ctx, domain.NewProgressIncrement("u1", "", c.ID, &two))
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.True(t, changes[0].CompletedNow)
	assert.Equal(t, 5, changes[0].Progress.CurrentProgress)

	p, err := f.progression.Progress(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, p.TotalXP)

	claim, err := f.challenges.Claim(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClaimed, claim.Progress.Status)
	require.True(t, claim.Award.Awarded)
	assert.Equal(t, domain.EventChallengeComplete, claim.Award.Event.EventType)
	assert.Equal(t, c.ID, claim.Award.Event.ReferenceID)

	p, err = f.progression.Progress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), p.TotalXP)
	assert.Equal(t, 2, p.Level)

	_, err = f.challenges.Claim(ctx, "u1", c.ID)
	assert.ErrorIs(t, err, domain.ErrChallengeAlreadyClaimed)
}

func TestChallenges_ClaimBeforeCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.challenge(t, domain.ChallengeDaily, 3, 20)

	_, err := f.challenges.Claim(ctx, "u1", c.ID)
	assert.ErrorIs(t, err, domain.ErrChallengeNotCompleted)

	_, err = f.challenges.Increment(ctx, domain.NewProgressIncrement("u1", domain.ChallengeDaily, "", nil))
	require.NoError(t, err)
	_, err = f.challenges.Claim(ctx, "u1", c.ID)
	assert.ErrorIs(t, err, domain.ErrChallengeNotCompleted)

	_, err = f.challenges.Claim(ctx, "u1", "missing")
	assert.ErrorIs(t, err, domain.ErrChallengeNotFound)
}

func TestChallenges_DailyResetAllowsSecondClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.challenge(t, domain.ChallengeDaily, 1, 20)

	_, err := f.challenges.Increment(ctx, domain.NewProgressIncrement("u1", domain.ChallengeDaily, "", nil))
	require.NoError(t, err)
	_, err = f.challenges.Claim(ctx, "u1", c.ID)
	require.NoError(t, err)

	f.advance(24 * time.Hour)

	views, err := f.challenges.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.StatusInProgress, views[0].Status)
	assert.Zero(t, views[0].CurrentProgress)

	_, err = f.challenges.Increment(ctx, domain.NewProgressIncrement("u1", domain.ChallengeDaily, "", nil))
	require.NoError(t, err)
	claim, err := f.challenges.Claim(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.True(t, claim.Award.Awarded)
	assert.Equal(t, int64(40), claim.Award.TotalXP)
}

func TestChallenges_ResetPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.challenge(t, domain.ChallengeWeekly, 5, 20)
	f.challenge(t, domain.ChallengeUnique, 5, 20)

	n, err := f.challenges.Initialize(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = f.challenges.Increment(ctx, domain.NewProgressIncrement("u1", domain.ChallengeWeekly, "", nil))
	require.NoError(t, err)
	_, err = f.challenges.Increment(ctx, domain.NewProgressIncrement("u1", domain.ChallengeUnique, "", nil))
	require.NoError(t, err)

	f.advance(7 * 24 * time.Hour)
	reset, err := f.challenges.ResetPeriod(ctx, domain.ChallengeWeekly)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset)

	views, err := f.challenges.List(ctx, "u1")
	require.NoError(t, err)
	for _, v := range views {
		if v.Type == domain.ChallengeUnique {
			assert.Equal(t, 1, v.CurrentProgress)
		} else {
			assert.Zero(t, v.CurrentProgress)
		}
	}

	_, err = f.challenges.ResetPeriod(ctx, domain.ChallengeUnique)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestChallenges_AdminLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.challenge(t, domain.ChallengeDaily, 2, 10)

	_, err := f.challenges.Create(ctx, domain.ChallengeRequest{Name: "bad", Type: "monthly"})
	assert.ErrorIs(t, err, domain.ErrInvalidChallenge)

	_, err = f.challenges.Increment(ctx, domain.NewProgressIncrement("u1", "", c.ID, nil))
	require.NoError(t, err)

	_, err = f.challenges.Update(ctx, c.ID, domain.ChallengeRequest{Name: c.Name, Type: domain.ChallengeWeekly, TargetValue: 2})
	assert.ErrorIs(t, err, domain.ErrChallengeTypeLocked)

	_, err = f.challenges.Update(ctx, c.ID, domain.ChallengeRequest{Name: "renamed", Type: domain.ChallengeDaily, XPReward: 15})
	assert.ErrorIs(t, err, domain.ErrInvalidChallenge)

	updated, err := f.challenges.Update(ctx, c.ID, domain.ChallengeRequest{Name: "renamed", Type: domain.ChallengeDaily, TargetValue: 4, XPReward: 15})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.True(t, updated.IsActive)

	deactivated, err := f.challenges.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, deactivated)

	views, err := f.challenges.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, views)

	all, err := f.challenges.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAchievements_EvaluateTwiceUnlocksOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.achievement(t, "First Review", domain.RequirementReviewsCount, 1)

	_, _, err := f.store.UpsertReview(ctx, domain.Review{ID: "r1", UserID: "u1", TitleID: "t1", Rating: 4})
	require.NoError(t, err)

	first, err := f.achievements.Evaluate(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, a.ID, first[0].ID)

	second, err := f.achievements.Evaluate(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, 1, f.store.UnlockCount("u1"))
	assert.Contains(t, f.notifier.Types("u1"), MsgAchievementUnlocked)
}

func TestAchievements_ConcurrentEvaluation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.achievement(t, "First Review", domain.RequirementReviewsCount, 1)
	_, _, err := f.store.UpsertReview(ctx, domain.Review{ID: "r1", UserID: "u1", TitleID: "t1", Rating: 4})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.achievements.Evaluate(ctx, "u1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, f.store.UnlockCount("u1"))
}

func TestAchievements_ListIsReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.achievement(t, "Genre Hopper", domain.RequirementGenresExplored, 2)
	f.store.SetTitleGenres("t1", "drama", "crime")
	_, _, err := f.store.UpsertReview(ctx, domain.Review{ID: "r1", UserID: "u1", TitleID: "t1", Rating: 5})
	require.NoError(t, err)

	views, err := f.achievements.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 2, views[0].Progress)
	assert.False(t, views[0].Unlocked)
	assert.Equal(t, domain.RarityRare, views[0].Rarity)
	assert.Zero(t, f.store.UnlockCount("u1"))
}

func TestAchievements_CollectStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SetTitleGenres("t1", "drama")
	f.store.SetTitleGenres("t2", "drama", "comedy")
	for i, rating := range []int{5, 2} {
		title := []string{"t1", "t2"}[i]
		_, _, err := f.store.UpsertReview(ctx, domain.Review{ID: title, UserID: "u1", TitleID: title, Rating: rating,
			Comment: "a thoughtful comment on the title"})
		require.NoError(t, err)
	}
	_, err := f.progression.AwardXP(ctx, domain.AwardRequest{UserID: "u1", EventType: domain.EventChallengeComplete,
		Amount: 320, ReferenceID: "c1"})
	require.NoError(t, err)

	stats, err := f.achievements.CollectStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.UserStats{
		ReviewsCount: 2, Level: 3, HighRatings: 1, LowRatings: 1, CommentsCount: 2, GenresExplored: 2,
	}, stats)
}

func TestAchievements_CodeUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.achievement(t, "Critic", domain.RequirementCommentsCount, 5)
	assert.Equal(t, "critic", a.Code)

	_, err := f.achievements.Create(ctx, domain.AchievementRequest{Name: "Critic", RequirementType: domain.RequirementLevel, RequirementValue: 2})
	assert.ErrorIs(t, err, domain.ErrAchievementCodeTaken)

	updated, err := f.achievements.Update(ctx, a.ID, domain.AchievementRequest{Code: "other", Name: "Master Critic",
		RequirementType: domain.RequirementCommentsCount, RequirementValue: 10, XPReward: 300})
	require.NoError(t, err)
	assert.Equal(t, "critic", updated.Code)
	assert.Equal(t, domain.RarityLegendary, domain.RarityFor(updated.XPReward))
}
