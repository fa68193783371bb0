package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/mycine-gamification/internal/config"
	"github.com/mycine-gamification/internal/domain"
	"github.com/mycine-gamification/internal/logger"
	"github.com/redis/go-redis/v9"
)

const (
	xpKey      = "leaderboard:xp:global"
	rebuildKey = "leaderboard:xp:rebuild"
	namesKey   = "profile:display_names"
)

// swapScript raises every staged score to its live value when the live one
// is higher, then renames the staged set over the live set. Totals only grow,
// so a live score above the staged one came from an award written after the
// totals were read. Members missing from the stage are dropped.
var swapScript = redis.NewScript(`
local live = redis.call('ZRANGE', KEYS[2], 0, -1, 'WITHSCORES')
for i = 1, #live, 2 do
	redis.call('ZADD', KEYS[1], 'XX', 'GT', live[i + 1], live[i])
end
redis.call('RENAME', KEYS[1], KEYS[2])
return #live / 2
`)

// Leaderboard keeps the global XP ranking in a sorted set. PostgreSQL stays
// the source of truth; the set can be rebuilt from it at any time.
type Leaderboard struct {
	client *redis.Client
	logger *logger.Logger
}

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// NewLeaderboard creates a new Redis leaderboard
func NewLeaderboard(client *redis.Client, log *logger.Logger) *Leaderboard {
	return &Leaderboard{
		client: client,
		logger: log.With("component", "redis_leaderboard"),
	}
}

// Close closes the Redis connection
func (l *Leaderboard) Close() error {
	return l.client.Close()
}

// Ping checks the Redis connection
func (l *Leaderboard) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// SetXP stores a user's total XP
func (l *Leaderboard) SetXP(ctx context.Context, userID string, totalXP int64) error {
	err := l.client.ZAdd(ctx, xpKey, redis.Z{
		Score:  float64(totalXP),
		Member: userID,
	}).Err()
	if err != nil {
		return fmt.Errorf("setting xp: %w", err)
	}
	return nil
}

// TopN returns the N users with the most XP (descending order)
func (l *Leaderboard) TopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	results, err := l.client.ZRevRangeWithScores(ctx, xpKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, len(results))
	for i, result := range results {
		entries[i] = domain.NewLeaderboardEntry(int64(i+1), result.Member.(string), int64(result.Score))
	}
	return entries, nil
}

// UserRank returns a user's position and XP
func (l *Leaderboard) UserRank(ctx context.Context, userID string) (*domain.LeaderboardEntry, error) {
	pipe := l.client.Pipeline()
	rankCmd := pipe.ZRevRank(ctx, xpKey, userID)
	scoreCmd := pipe.ZScore(ctx, xpKey, userID)
	_, err := pipe.Exec(ctx)
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user rank: %w", err)
	}

	rank, err := rankCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("getting rank result: %w", err)
	}
	score, err := scoreCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("getting score result: %w", err)
	}

	entry := domain.NewLeaderboardEntry(rank+1, userID, int64(score))
	return &entry, nil
}

// Count returns the number of ranked users
func (l *Leaderboard) Count(ctx context.Context) (int64, error) {
	count, err := l.client.ZCard(ctx, xpKey).Result()
	if err != nil {
		return 0, fmt.Errorf("getting count: %w", err)
	}
	return count, nil
}

// CountAtLeast returns how many users have at least minXP
func (l *Leaderboard) CountAtLeast(ctx context.Context, minXP int64) (int64, error) {
	count, err := l.client.ZCount(ctx, xpKey, fmt.Sprint(minXP), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// Rebuild replaces the ranking with the given totals. The new set is built
// under a scratch key and swapped in atomically, keeping any live score that
// grew while the totals were being staged. A user ranked for the first time
// during the rebuild drops out until their next award or the next rebuild.
func (l *Leaderboard) Rebuild(ctx context.Context, totals map[string]int64, batchSize int) error {
	if len(totals) == 0 {
		if err := l.client.Del(ctx, xpKey).Err(); err != nil {
			return fmt.Errorf("clearing leaderboard: %w", err)
		}
		return nil
	}
	if err := l.stage(ctx, totals, batchSize); err != nil {
		return err
	}
	if err := l.swap(ctx); err != nil {
		return err
	}
	l.logger.Debug("leaderboard rebuilt", "users", len(totals))
	return nil
}

// stage writes totals into the scratch key in batches.
func (l *Leaderboard) stage(ctx context.Context, totals map[string]int64, batchSize int) error {
	if batchSize <= 0 {
		batchSize = len(totals)
	}
	if err := l.client.Del(ctx, rebuildKey).Err(); err != nil {
		return fmt.Errorf("clearing scratch key: %w", err)
	}

	batch := make([]redis.Z, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := l.client.ZAdd(ctx, rebuildKey, batch...).Err(); err != nil {
			return fmt.Errorf("writing batch: %w", err)
		}
		batch = batch[:0]
		return nil
	}
	for userID, total := range totals {
		batch = append(batch, redis.Z{Score: float64(total), Member: userID})
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func (l *Leaderboard) swap(ctx context.Context) error {
	if err := swapScript.Run(ctx, l.client, []string{rebuildKey, xpKey}).Err(); err != nil {
		return fmt.Errorf("swapping leaderboard: %w", err)
	}
	return nil
}

// SetDisplayName caches a user's display name
func (l *Leaderboard) SetDisplayName(ctx context.Context, userID, name string) error {
	if err := l.client.HSet(ctx, namesKey, userID, name).Err(); err != nil {
		return fmt.Errorf("setting display name: %w", err)
	}
	return nil
}

// DisplayNames returns cached display names; unknown users are omitted
func (l *Leaderboard) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}
	values, err := l.client.HMGet(ctx, namesKey, userIDs...).Result()
	if err != nil {
		return nil, fmt.Errorf("getting display names: %w", err)
	}
	for i, v := range values {
		if s, ok := v.(string); ok && s != "" {
			names[userIDs[i]] = s
		}
	}
	return names, nil
}
