package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mycine-gamification/internal/domain"
	"github.com/mycine-gamification/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRepository connects to MYCINE_TEST_DATABASE_URL. Every test uses
// fresh ids so the database can be shared between runs.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("MYCINE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MYCINE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := &Repository{pool: pool, logger: logger.Nop()}
	require.NoError(t, repo.RunMigrations(ctx))
	return repo
}

func createChallenge(t *testing.T, repo *Repository, typ domain.ChallengeType, target int, reward int64) domain.Challenge {
	t.Helper()
	req := domain.ChallengeRequest{Name: "test " + string(typ), Type: typ, TargetValue: target, XPReward: reward}
	c := req.ToChallenge(time.Now())
	require.NoError(t, repo.CreateChallenge(context.Background(), c))
	return c
}

func TestAwardXP_ConcurrentDuplicatesPersistOnce(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	userID := uuid.NewString()

	var wg sync.WaitGroup
	results := make([]*domain.AwardResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := repo.AwardXP(ctx, domain.NewAward(userID, domain.EventFirstReviewTitle, "title_X", time.Now()))
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	awarded := 0
	for _, res := range results {
		if res != nil && res.Awarded {
			awarded++
		}
	}
	assert.Equal(t, 1, awarded)

	events, err := repo.ListXPEvents(ctx, userID, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	rec, err := repo.GetUserXP(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.TotalXP)
}

func TestAwardXP_LevelFollowsTotal(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	userID := uuid.NewString()

	c := createChallenge(t, repo, domain.ChallengeUnique, 1, 150)
	_, err := repo.IncrementChallengeProgress(ctx, domain.NewProgressIncrement(userID, "", c.ID, nil), time.Now())
	require.NoError(t, err)

	claim, err := repo.ClaimChallenge(ctx, userID, c.ID, time.Now())
	require.NoError(t, err)
	require.True(t, claim.Award.Awarded)
	assert.Equal(t, 2, claim.Award.Level)
	assert.True(t, claim.Award.LeveledUp())

	rec, err := repo.GetUserXP(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), rec.TotalXP)
	assert.Equal(t, 2, rec.Level)

	_, err = repo.ClaimChallenge(ctx, userID, c.ID, time.Now())
	assert.ErrorIs(t, err, domain.ErrChallengeAlreadyClaimed)
}

func TestIncrementChallengeProgress_ClampsAndCompletes(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	userID := uuid.NewString()
	c := createChallenge(t, repo, domain.ChallengeUnique, 5, 30)

	four := 4
	two := 2
	_, err := repo.IncrementChallengeProgress(ctx, domain.NewProgressIncrement(userID, "", c.ID, &four), time.Now())
	require.NoError(t, err)
	changes, err := repo.IncrementChallengeProgress(ctx, domain.NewProgressIncrement(userID, "", c.ID, &two), time.Now())
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.True(t, changes[0].CompletedNow)
	assert.Equal(t, 5, changes[0].Progress.CurrentProgress)
	assert.Equal(t, domain.StatusCompleted, changes[0].Progress.Status)

	rec, err := repo.GetUserXP(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, rec.TotalXP)
}

func TestIncrementChallengeProgress_Concurrent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	userID := uuid.NewString()
	c := createChallenge(t, repo, domain.ChallengeUnique, 100, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.IncrementChallengeProgress(ctx, domain.NewProgressIncrement(userID, "", c.ID, nil), time.Now())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	progress, err := repo.ListChallengeProgress(ctx, userID)
	require.NoError(t, err)
	require.Len(t, progress, 1)
	assert.Equal(t, 20, progress[0].CurrentProgress)
}

func TestIncrementChallengeProgress_UnknownChallenge(t *testing.T) {
	repo := newTestRepository(t)
	_, err := repo.IncrementChallengeProgress(context.Background(),
		domain.NewProgressIncrement(uuid.NewString(), "", uuid.NewString(), nil), time.Now())
	assert.ErrorIs(t, err, domain.ErrChallengeNotFound)
}

func TestUnlockAchievement_Idempotent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	userID := uuid.NewString()

	req := domain.AchievementRequest{
		Code:             "test-" + uuid.NewString(),
		Name:             "First Steps",
		RequirementType:  domain.RequirementReviewsCount,
		RequirementValue: 1,
		XPReward:         20,
	}
	a := req.ToAchievement(time.Now())
	require.NoError(t, repo.CreateAchievement(ctx, a))
	assert.ErrorIs(t, repo.CreateAchievement(ctx, req.ToAchievement(time.Now())), domain.ErrAchievementCodeTaken)

	first, err := repo.UnlockAchievement(ctx, userID, a.ID, time.Now())
	require.NoError(t, err)
	second, err := repo.UnlockAchievement(ctx, userID, a.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)

	unlocks, err := repo.ListUnlocks(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, unlocks, 1)
}

func TestDeleteChallenge_DeactivatesOnceProgressExists(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	unused := createChallenge(t, repo, domain.ChallengeDaily, 1, 5)
	deactivated, err := repo.DeleteChallenge(ctx, unused.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, deactivated)
	_, err = repo.GetChallenge(ctx, unused.ID)
	assert.ErrorIs(t, err, domain.ErrChallengeNotFound)

	used := createChallenge(t, repo, domain.ChallengeDaily, 3, 5)
	_, err = repo.IncrementChallengeProgress(ctx, domain.NewProgressIncrement(uuid.NewString(), "", used.ID, nil), time.Now())
	require.NoError(t, err)

	used.Type = domain.ChallengeWeekly
	assert.ErrorIs(t, repo.UpdateChallenge(ctx, used), domain.ErrChallengeTypeLocked)

	deactivated, err = repo.DeleteChallenge(ctx, used.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, deactivated)
	got, err := repo.GetChallenge(ctx, used.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestReviewStats(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	userID := uuid.NewString()
	now := time.Now()

	for i, rating := range []int{5, 1, 3} {
		comment := ""
		if i == 0 {
			comment = "a comment that is long enough"
		}
		_, created, err := repo.UpsertReview(ctx, domain.Review{
			ID: uuid.NewString(), UserID: userID, TitleID: uuid.NewString(),
			Rating: rating, Comment: comment, UpdatedAt: now,
		})
		require.NoError(t, err)
		assert.True(t, created)
	}

	stats, err := repo.ReviewStats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ReviewsCount)
	assert.Equal(t, 1, stats.HighRatings)
	assert.Equal(t, 1, stats.LowRatings)
	assert.Equal(t, 1, stats.CommentsCount)
}
