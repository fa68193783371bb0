package service

import (
	"context"
	"testing"

	"github.com/mycine-gamification/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderboard_TopWithNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.UpsertProfile(ctx, domain.Profile{UserID: "u1", Username: "ana"}))
	require.NoError(t, f.ranking.SetDisplayName(ctx, "u2", "Bruno"))
	require.NoError(t, f.ranking.SetXP(ctx, "u1", 700))
	require.NoError(t, f.ranking.SetXP(ctx, "u2", 10000))
	require.NoError(t, f.ranking.SetXP(ctx, "u3", 20))

	top, err := f.leaderboard.Top(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "Bruno", top[0].DisplayName)
	assert.Equal(t, domain.RankDiamond, top[0].Rank)
	assert.Equal(t, "ana", top[1].DisplayName)
	assert.Equal(t, 5, top[1].Level)
	assert.Equal(t, domain.RankSilver, top[1].Rank)
	assert.Empty(t, top[2].DisplayName)

	names, err := f.ranking.DisplayNames(ctx, []string{"u1"})
	require.NoError(t, err)
	assert.Equal(t, "ana", names["u1"])

	stats, err := f.leaderboard.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.DiamondUsers)
	assert.Equal(t, int64(10000), stats.TopXP)
}

func TestLeaderboard_PositionAndRebuild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.AwardXP(ctx, domain.NewAward("u1", domain.EventProfileComplete, "", *f.clock))
	require.NoError(t, err)

	me, err := f.leaderboard.Position(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, me.Position)
	assert.Equal(t, int64(50), me.TotalXP)

	n, err := f.leaderboard.Rebuild(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	me, err = f.leaderboard.Position(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), me.Position)
}
