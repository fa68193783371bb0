package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwardRequest_Validate(t *testing.T) {
	at := time.Date(2026, 3, 4, 22, 30, 0, 0, time.UTC)

	t.Run("fixed amount fills dedupe key", func(t *testing.T) {
		req := NewAward("u1", EventFirstReviewTitle, "title-9", at)
		require.NoError(t, req.Validate())
		assert.Equal(t, int64(10), req.Amount)
		assert.Equal(t, "title-9", req.DedupeKey)
	})

	t.Run("daily review keyed by utc day", func(t *testing.T) {
		local := at.In(time.FixedZone("UTC+3", 3*3600))
		req := NewAward("u1", EventDailyReview, "", local)
		require.NoError(t, req.Validate())
		assert.Equal(t, "2026-03-04", req.DedupeKey)
	})

	t.Run("profile complete keyed once", func(t *testing.T) {
		req := NewAward("u1", EventProfileComplete, "", at)
		require.NoError(t, req.Validate())
		assert.Equal(t, "profile", req.DedupeKey)
		assert.Equal(t, int64(50), req.Amount)
	})

	t.Run("mismatched amount", func(t *testing.T) {
		req := NewAward("u1", EventExtraComment, "r1", at)
		req.Amount = 500
		assert.ErrorIs(t, req.Validate(), ErrInvalidXP)
	})

	t.Run("negative challenge reward", func(t *testing.T) {
		req := AwardRequest{UserID: "u1", EventType: EventChallengeComplete, ReferenceID: "c1", Amount: -5}
		assert.ErrorIs(t, req.Validate(), ErrInvalidXP)
	})

	t.Run("missing reference", func(t *testing.T) {
		req := NewAward("u1", EventExtraComment, "", at)
		assert.ErrorIs(t, req.Validate(), ErrInvalidReference)
	})

	t.Run("unknown type", func(t *testing.T) {
		req := AwardRequest{UserID: "u1", EventType: "achievement_unlock"}
		assert.ErrorIs(t, req.Validate(), ErrInvalidEventType)
	})

	t.Run("missing user", func(t *testing.T) {
		req := NewAward("", EventDailyReview, "", at)
		assert.ErrorIs(t, req.Validate(), ErrInvalidRequest)
	})
}

func TestChallengeClaimKey(t *testing.T) {
	assert.Equal(t, "c1", ChallengeClaimKey("c1", time.Time{}))
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "c1@2026-03-02T00:00:00Z", ChallengeClaimKey("c1", start))
}

func TestAwardResult_LeveledUp(t *testing.T) {
	var nilResult *AwardResult
	assert.False(t, nilResult.LeveledUp())
	assert.True(t, (&AwardResult{Level: 2, PreviousLevel: 1}).LeveledUp())
	assert.False(t, (&AwardResult{Level: 2, PreviousLevel: 2}).LeveledUp())
}
