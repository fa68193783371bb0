package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRarityFor(t *testing.T) {
	assert.Equal(t, RarityCommon, RarityFor(0))
	assert.Equal(t, RarityCommon, RarityFor(74))
	assert.Equal(t, RarityRare, RarityFor(75))
	assert.Equal(t, RarityEpic, RarityFor(150))
	assert.Equal(t, RarityLegendary, RarityFor(300))
}

func TestShouldUnlock(t *testing.T) {
	a := Achievement{RequirementType: RequirementHighRatings, RequirementValue: 3}

	assert.False(t, ShouldUnlock(a, UserStats{HighRatings: 2}, false))
	assert.True(t, ShouldUnlock(a, UserStats{HighRatings: 3}, false))
	assert.True(t, ShouldUnlock(a, UserStats{HighRatings: 9}, false))
	assert.False(t, ShouldUnlock(a, UserStats{HighRatings: 9}, true))
	assert.Equal(t, 3, AchievementProgress(a, UserStats{HighRatings: 9}))
}

func TestUserStats_Stat(t *testing.T) {
	s := UserStats{ReviewsCount: 1, Level: 2, HighRatings: 3, LowRatings: 4, CommentsCount: 5, GenresExplored: 6}
	assert.Equal(t, 1, s.Stat(RequirementReviewsCount))
	assert.Equal(t, 2, s.Stat(RequirementLevel))
	assert.Equal(t, 3, s.Stat(RequirementHighRatings))
	assert.Equal(t, 4, s.Stat(RequirementLowRatings))
	assert.Equal(t, 5, s.Stat(RequirementCommentsCount))
	assert.Equal(t, 6, s.Stat(RequirementGenresExplored))
	assert.Zero(t, s.Stat("minutes_watched"))
}

func TestAchievementRequest_ToAchievement(t *testing.T) {
	req := AchievementRequest{
		Name:             "Genre Hopper",
		RequirementType:  RequirementGenresExplored,
		RequirementValue: 5,
		XPReward:         150,
	}
	a := req.ToAchievement(time.Now())
	require.NoError(t, a.Validate())
	assert.Equal(t, "genre-hopper", a.Code)
	assert.True(t, a.IsActive)

	v := NewAchievementView(a, UserStats{GenresExplored: 2}, nil)
	assert.Equal(t, 2, v.Progress)
	assert.False(t, v.Unlocked)
	assert.Equal(t, RarityEpic, v.Rarity)

	a.RequirementValue = 0
	assert.ErrorIs(t, a.Validate(), ErrInvalidAchievement)
}
