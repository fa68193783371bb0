package domain

import "errors"

// Domain errors
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrChallengeNotFound   = errors.New("challenge not found")
	ErrAchievementNotFound = errors.New("achievement not found")
	ErrReviewNotFound      = errors.New("review not found")

	ErrInvalidXP          = errors.New("invalid xp amount")
	ErrInvalidEventType   = errors.New("invalid xp event type")
	ErrInvalidReference   = errors.New("reference id required for event type")
	ErrInvalidIncrement   = errors.New("invalid challenge increment")
	ErrInvalidChallenge   = errors.New("invalid challenge definition")
	ErrInvalidAchievement = errors.New("invalid achievement definition")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
	ErrCommentTooShort    = errors.New("comment must have at least 20 characters")
	ErrInvalidActivity    = errors.New("invalid activity event")
	ErrInvalidRequest     = errors.New("invalid request")

	ErrChallengeNotCompleted   = errors.New("challenge not completed")
	ErrChallengeAlreadyClaimed = errors.New("challenge reward already claimed")
	ErrChallengeTypeLocked     = errors.New("challenge type cannot change once progress exists")
	ErrAchievementCodeTaken    = errors.New("achievement code already in use")

	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrInternalError = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrChallengeNotFound) ||
		errors.Is(err, ErrAchievementNotFound) ||
		errors.Is(err, ErrReviewNotFound)
}

// IsValidationError reports errors caused by malformed caller input.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidXP, ErrInvalidEventType, ErrInvalidReference, ErrInvalidIncrement,
		ErrInvalidChallenge, ErrInvalidAchievement, ErrInvalidRating, ErrCommentTooShort,
		ErrInvalidActivity, ErrInvalidRequest,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflictError reports state-transition conflicts.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrChallengeNotCompleted) ||
		errors.Is(err, ErrChallengeAlreadyClaimed) ||
		errors.Is(err, ErrChallengeTypeLocked) ||
		errors.Is(err, ErrAchievementCodeTaken)
}
