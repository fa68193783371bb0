package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelForXP_Thresholds(t *testing.T) {
	for k, threshold := range LevelThresholds {
		assert.Equal(t, k+1, LevelForXP(threshold), "xp=%d", threshold)
		if k > 0 {
			assert.Equal(t, k, LevelForXP(threshold-1), "xp=%d", threshold-1)
		}
	}
	assert.Equal(t, MaxLevel, LevelForXP(1_000_000))
}

func TestLevelForXP_Monotonic(t *testing.T) {
	prev := LevelForXP(0)
	for xp := int64(0); xp <= 12000; xp += 7 {
		level := LevelForXP(xp)
		assert.GreaterOrEqual(t, level, prev)
		assert.GreaterOrEqual(t, level, 1)
		assert.LessOrEqual(t, level, MaxLevel)
		prev = level
	}
}

func TestLevelProgress(t *testing.T) {
	assert.Equal(t, 0.0, LevelProgress(0))
	assert.Equal(t, 0.0, LevelProgress(150))
	assert.Equal(t, 50.0, LevelProgress(75))
	assert.Equal(t, 50.0, LevelProgress(400))
	assert.Equal(t, 100.0, LevelProgress(10000))
	assert.Equal(t, 100.0, LevelProgress(25000))
}

func TestRankForLevel(t *testing.T) {
	cases := map[int]Rank{
		1: RankBronze, 3: RankBronze,
		4: RankSilver, 6: RankSilver,
		7: RankGold, 9: RankGold,
		10: RankDiamond,
	}
	for level, want := range cases {
		assert.Equal(t, want, RankForLevel(level), "level %d", level)
	}
}

func TestDeriveProgression(t *testing.T) {
	p, err := DeriveProgression(150)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, 0.0, p.Progress)
	assert.Equal(t, int64(150), p.CurrentLevelXP)
	assert.Equal(t, int64(300), p.NextLevelXP)
	assert.Equal(t, int64(150), p.XPToNextLevel)
	assert.False(t, p.MaxLevel)

	p, err = DeriveProgression(12000)
	require.NoError(t, err)
	assert.Equal(t, MaxLevel, p.Level)
	assert.Equal(t, RankDiamond, p.Rank)
	assert.True(t, p.MaxLevel)
	assert.Equal(t, 100.0, p.Progress)
	assert.Zero(t, p.XPToNextLevel)

	_, err = DeriveProgression(-1)
	assert.ErrorIs(t, err, ErrInvalidXP)
}
