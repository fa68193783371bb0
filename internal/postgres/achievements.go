package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mycine-gamification/internal/domain"
)

const achievementColumns = `id, code, name, description, icon, requirement_type, requirement_value,
	xp_reward, is_active, created_at, updated_at`

func scanAchievement(row scanner) (domain.Achievement, error) {
	var a domain.Achievement
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Description, &a.Icon, &a.RequirementType,
		&a.RequirementValue, &a.XPReward, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// ListAchievements returns achievement definitions ordered by reward
func (r *Repository) ListAchievements(ctx context.Context, activeOnly bool) ([]domain.Achievement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+achievementColumns+`
		FROM achievements
		WHERE is_active OR NOT $1
		ORDER BY xp_reward, name
	`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("listing achievements: %w", err)
	}
	defer rows.Close()

	achievements := []domain.Achievement{}
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning achievement: %w", err)
		}
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}

// GetAchievement retrieves an achievement by ID
func (r *Repository) GetAchievement(ctx context.Context, achievementID string) (*domain.Achievement, error) {
	a, err := scanAchievement(r.pool.QueryRow(ctx,
		`SELECT `+achievementColumns+` FROM achievements WHERE id = $1`, achievementID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAchievementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting achievement: %w", err)
	}
	return &a, nil
}

// CreateAchievement inserts a new achievement definition
func (r *Repository) CreateAchievement(ctx context.Context, a domain.Achievement) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO achievements (`+achievementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, a.Code, a.Name, a.Description, a.Icon, string(a.RequirementType), a.RequirementValue,
		a.XPReward, a.IsActive, a.CreatedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrAchievementCodeTaken
	}
	if err != nil {
		return fmt.Errorf("creating achievement: %w", err)
	}
	return nil
}

// UpdateAchievement replaces the mutable fields of an achievement. The code
// is its identity and is never rewritten.
func (r *Repository) UpdateAchievement(ctx context.Context, a domain.Achievement) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE achievements
		SET name = $2, description = $3, icon = $4, requirement_type = $5, requirement_value = $6,
			xp_reward = $7, is_active = $8, updated_at = $9
		WHERE id = $1
	`, a.ID, a.Name, a.Description, a.Icon, string(a.RequirementType), a.RequirementValue,
		a.XPReward, a.IsActive, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating achievement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAchievementNotFound
	}
	return nil
}

// ListUnlocks returns the achievements a user has unlocked
func (r *Repository) ListUnlocks(ctx context.Context, userID string) ([]domain.AchievementUnlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, achievement_id, unlocked_at
		FROM user_achievements
		WHERE user_id = $1
		ORDER BY unlocked_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing unlocks: %w", err)
	}
	defer rows.Close()

	unlocks := []domain.AchievementUnlock{}
	for rows.Next() {
		var u domain.AchievementUnlock
		if err := rows.Scan(&u.UserID, &u.AchievementID, &u.UnlockedAt); err != nil {
			return nil, fmt.Errorf("scanning unlock: %w", err)
		}
		unlocks = append(unlocks, u)
	}
	return unlocks, rows.Err()
}

// UnlockAchievement records an unlock. It reports false when the pair was
// already unlocked, including by a concurrent evaluation.
func (r *Repository) UnlockAchievement(ctx context.Context, userID, achievementID string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`, userID, achievementID, at)
	if err != nil {
		return false, fmt.Errorf("unlocking achievement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReviewStats counts the review based statistics of a user. Level and
// genres are filled by other queries.
func (r *Repository) ReviewStats(ctx context.Context, userID string) (domain.UserStats, error) {
	var s domain.UserStats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE rating >= $2),
			COUNT(*) FILTER (WHERE rating <= $3),
			COUNT(*) FILTER (WHERE btrim(comment) <> '')
		FROM reviews
		WHERE user_id = $1 AND NOT is_deleted
	`, userID, domain.HighRatingFloor, domain.LowRatingCeil).Scan(
		&s.ReviewsCount, &s.HighRatings, &s.LowRatings, &s.CommentsCount)
	if err != nil {
		return s, fmt.Errorf("counting review stats: %w", err)
	}
	return s, nil
}

// CountGenresExplored counts the distinct categories over reviewed titles
func (r *Repository) CountGenresExplored(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT tc.category_id)
		FROM reviews rv
		JOIN title_categories tc ON tc.title_id = rv.title_id
		WHERE rv.user_id = $1 AND NOT rv.is_deleted
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting genres explored: %w", err)
	}
	return n, nil
}
