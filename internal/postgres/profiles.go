package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mycine-gamification/internal/domain"
)

// GetProfile retrieves a profile by user ID
func (r *Repository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	p := domain.Profile{UserID: userID}
	err := r.pool.QueryRow(ctx, `
		SELECT username, display_name, avatar_url, profile_completed_at, created_at, updated_at
		FROM profiles WHERE user_id = $1
	`, userID).Scan(&p.Username, &p.DisplayName, &p.AvatarURL, &p.ProfileCompletedAt,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return &p, nil
}

// UpsertProfile inserts or replaces a profile. profile_completed_at is only
// ever set once.
func (r *Repository) UpsertProfile(ctx context.Context, p domain.Profile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO profiles (user_id, username, display_name, avatar_url, profile_completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id)
		DO UPDATE SET username = EXCLUDED.username, display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url,
			profile_completed_at = COALESCE(profiles.profile_completed_at, EXCLUDED.profile_completed_at),
			updated_at = EXCLUDED.updated_at
	`, p.UserID, p.Username, p.DisplayName, p.AvatarURL, p.ProfileCompletedAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}
	return nil
}

// GetDisplayNames resolves display names for a set of users, falling back to
// the username. Users without a profile are omitted.
func (r *Repository) GetDisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, COALESCE(NULLIF(display_name, ''), username)
		FROM profiles WHERE user_id = ANY($1)
	`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("getting display names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning display name: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

// HasRole reports whether the user holds the role
func (r *Repository) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_roles WHERE user_id = $1 AND role = $2)`, userID, role).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking role: %w", err)
	}
	return ok, nil
}

// DashboardStats aggregates the admin dashboard counters for the UTC day
// containing now
func (r *Repository) DashboardStats(ctx context.Context, now time.Time) (*domain.DashboardStats, error) {
	dayStart := domain.PeriodStart(domain.ChallengeDaily, now)
	var s domain.DashboardStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM reviews WHERE created_at >= $1 AND NOT is_deleted),
			(SELECT COUNT(DISTINCT user_id) FROM xp_events WHERE created_at >= $1),
			(SELECT COALESCE(AVG(total_xp), 0)::float8 FROM user_xp),
			(SELECT COUNT(*) FROM user_xp),
			(SELECT COUNT(*) FROM titles)
	`, dayStart).Scan(&s.ReviewsToday, &s.ActiveUsersToday, &s.AverageXP, &s.TotalUsers, &s.TotalTitles)
	if err != nil {
		return nil, fmt.Errorf("getting dashboard stats: %w", err)
	}
	return &s, nil
}
