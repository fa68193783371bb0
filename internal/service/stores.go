package service

import (
	"context"
	"time"

	"github.com/mycine-gamification/internal/domain"
)

// XPStore is the XP ledger
type XPStore interface {
	AwardXP(ctx context.Context, req domain.AwardRequest) (*domain.AwardResult, error)
	GetUserXP(ctx context.Context, userID string) (*domain.UserXP, error)
	ListXPEvents(ctx context.Context, userID string, limit int) ([]domain.XPEvent, error)
	AllUserXP(ctx context.Context) (map[string]int64, error)
}

// ChallengeStore persists challenge definitions and per-user progress
type ChallengeStore interface {
	ListActiveChallenges(ctx context.Context, now time.Time) ([]domain.Challenge, error)
	ListChallenges(ctx context.Context) ([]domain.Challenge, error)
	GetChallenge(ctx context.Context, challengeID string) (*domain.Challenge, error)
	ListChallengeProgress(ctx context.Context, userID string) ([]domain.ChallengeProgress, error)
	IncrementChallengeProgress(ctx context.Context, inc domain.ProgressIncrement, now time.Time) ([]domain.ProgressChange, error)
	ClaimChallenge(ctx context.Context, userID, challengeID string, now time.Time) (*domain.ClaimResult, error)
	InitializeUserChallenges(ctx context.Context, userID string, now time.Time) (int64, error)
	ResetExpiredProgress(ctx context.Context, t domain.ChallengeType, periodStart, now time.Time) (int64, error)
	CreateChallenge(ctx context.Context, c domain.Challenge) error
	UpdateChallenge(ctx context.Context, c domain.Challenge) error
	DeleteChallenge(ctx context.Context, challengeID string, now time.Time) (bool, error)
}

// AchievementStore persists achievement definitions, unlocks and the
// statistics they are evaluated against
type AchievementStore interface {
	ListAchievements(ctx context.Context, activeOnly bool) ([]domain.Achievement, error)
	GetAchievement(ctx context.Context, achievementID string) (*domain.Achievement, error)
	CreateAchievement(ctx context.Context, a domain.Achievement) error
	UpdateAchievement(ctx context.Context, a domain.Achievement) error
	ListUnlocks(ctx context.Context, userID string) ([]domain.AchievementUnlock, error)
	UnlockAchievement(ctx context.Context, userID, achievementID string, at time.Time) (bool, error)
	ReviewStats(ctx context.Context, userID string) (domain.UserStats, error)
	CountGenresExplored(ctx context.Context, userID string) (int, error)
}

// ReviewStore persists reviews and moderation
type ReviewStore interface {
	UpsertReview(ctx context.Context, r domain.Review) (*domain.Review, bool, error)
	GetReview(ctx context.Context, reviewID string) (*domain.Review, error)
	DeleteReview(ctx context.Context, userID, titleID string, now time.Time) error
	ModerateReview(ctx context.Context, entry domain.ModerationLog) error
	ListModerationLogs(ctx context.Context, limit int) ([]domain.ModerationLog, error)
}

// ProfileStore persists public profiles
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	UpsertProfile(ctx context.Context, p domain.Profile) error
	GetDisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// AdminStore answers role and dashboard queries
type AdminStore interface {
	HasRole(ctx context.Context, userID, role string) (bool, error)
	DashboardStats(ctx context.Context, now time.Time) (*domain.DashboardStats, error)
}

// Ranking is the XP leaderboard cache
type Ranking interface {
	SetXP(ctx context.Context, userID string, totalXP int64) error
	TopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error)
	UserRank(ctx context.Context, userID string) (*domain.LeaderboardEntry, error)
	Count(ctx context.Context) (int64, error)
	CountAtLeast(ctx context.Context, minXP int64) (int64, error)
	Rebuild(ctx context.Context, totals map[string]int64, batchSize int) error
	SetDisplayName(ctx context.Context, userID, name string) error
	DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// Message types pushed to clients
const (
	MsgXPAwarded           = "xp_awarded"
	MsgLevelUp             = "level_up"
	MsgChallengeProgress   = "challenge_progress"
	MsgAchievementUnlocked = "achievement_unlocked"
	MsgLeaderboardUpdate   = "leaderboard_update"
)

// Notifier pushes realtime updates
type Notifier interface {
	NotifyUser(userID, msgType string, payload interface{})
	NotifyLeaderboard(msgType string, payload interface{})
}

// Evaluator runs achievement evaluation for a user
type Evaluator interface {
	Evaluate(ctx context.Context, userID string) ([]domain.Achievement, error)
}

type nopNotifier struct{}

func (nopNotifier) NotifyUser(string, string, interface{}) {}
func (nopNotifier) NotifyLeaderboard(string, interface{})  {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
