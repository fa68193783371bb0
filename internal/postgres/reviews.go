package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mycine-gamification/internal/domain"
)

// UpsertReview stores the user's review of a title, replacing an earlier
// one. created reports whether a new row was inserted.
func (r *Repository) UpsertReview(ctx context.Context, rv domain.Review) (*domain.Review, bool, error) {
	var created bool
	err := r.pool.QueryRow(ctx, `
		INSERT INTO reviews (id, user_id, title_id, rating, comment, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $6)
		ON CONFLICT (user_id, title_id)
		DO UPDATE SET rating = EXCLUDED.rating, comment = EXCLUDED.comment,
			is_deleted = FALSE, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, (xmax = 0)
	`, rv.ID, rv.UserID, rv.TitleID, rv.Rating, rv.Comment, rv.UpdatedAt).Scan(&rv.ID, &rv.CreatedAt, &created)
	if err != nil {
		return nil, false, fmt.Errorf("upserting review: %w", err)
	}
	rv.IsDeleted = false
	return &rv, created, nil
}

// GetReview retrieves a review by ID
func (r *Repository) GetReview(ctx context.Context, reviewID string) (*domain.Review, error) {
	var rv domain.Review
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, title_id, rating, comment, is_deleted, created_at, updated_at
		FROM reviews WHERE id = $1
	`, reviewID).Scan(&rv.ID, &rv.UserID, &rv.TitleID, &rv.Rating, &rv.Comment, &rv.IsDeleted,
		&rv.CreatedAt, &rv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting review: %w", err)
	}
	return &rv, nil
}

// DeleteReview soft-deletes the user's review of a title
func (r *Repository) DeleteReview(ctx context.Context, userID, titleID string, now time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reviews SET is_deleted = TRUE, updated_at = $3
		WHERE user_id = $1 AND title_id = $2 AND NOT is_deleted
	`, userID, titleID, now)
	if err != nil {
		return fmt.Errorf("deleting review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReviewNotFound
	}
	return nil
}

// ModerateReview applies an admin action to a review and records it in the
// moderation log in one transaction
func (r *Repository) ModerateReview(ctx context.Context, entry domain.ModerationLog) error {
	deleted := entry.Action == domain.ModerationSoftDelete
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE reviews SET is_deleted = $2, updated_at = $3 WHERE id = $1`,
			entry.TargetID, deleted, entry.CreatedAt)
		if err != nil {
			return fmt.Errorf("moderating review: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrReviewNotFound
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO admin_moderation_logs (id, admin_id, target_id, target_type, action, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, entry.ID, entry.AdminID, entry.TargetID, entry.TargetType, string(entry.Action), entry.Reason,
			entry.CreatedAt)
		if err != nil {
			return fmt.Errorf("recording moderation log: %w", err)
		}
		return nil
	})
}

// ListModerationLogs returns the most recent admin actions
func (r *Repository) ListModerationLogs(ctx context.Context, limit int) ([]domain.ModerationLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, admin_id, target_id, target_type, action, reason, created_at
		FROM admin_moderation_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing moderation logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.ModerationLog{}
	for rows.Next() {
		var l domain.ModerationLog
		if err := rows.Scan(&l.ID, &l.AdminID, &l.TargetID, &l.TargetType, &l.Action, &l.Reason,
			&l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning moderation log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
