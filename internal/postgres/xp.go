package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mycine-gamification/internal/domain"
)

// AwardXP appends one event to the ledger and adds its amount to the user's
// running total in the same transaction. A second event with the same
// (user, type, dedupe key) is dropped and reported with Awarded=false.
func (r *Repository) AwardXP(ctx context.Context, req domain.AwardRequest) (*domain.AwardResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var result *domain.AwardResult
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		result, err = awardXPTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("awarding xp: %w", err)
	}
	return result, nil
}

// awardXPTx runs the award inside an existing transaction. req must be validated.
func awardXPTx(ctx context.Context, tx pgx.Tx, req domain.AwardRequest) (*domain.AwardResult, error) {
	var metadataJSON []byte
	if req.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(req.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshaling metadata: %w", err)
		}
	}

	event := domain.XPEvent{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		EventType:   req.EventType,
		XPAmount:    req.Amount,
		ReferenceID: req.ReferenceID,
		DedupeKey:   req.DedupeKey,
		Metadata:    req.Metadata,
		CreatedAt:   req.At,
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO xp_events (id, user_id, event_type, xp_amount, reference_id, dedupe_key, metadata, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
		ON CONFLICT (user_id, event_type, dedupe_key) DO NOTHING
	`, event.ID, event.UserID, string(event.EventType), event.XPAmount, event.ReferenceID,
		event.DedupeKey, metadataJSON, event.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting xp event: %w", err)
	}

	if tag.RowsAffected() == 0 {
		current, err := getUserXP(ctx, tx, req.UserID)
		if err != nil {
			return nil, err
		}
		return &domain.AwardResult{
			TotalXP:       current.TotalXP,
			Level:         current.Level,
			PreviousLevel: current.Level,
		}, nil
	}

	var total int64
	err = tx.QueryRow(ctx, `
		INSERT INTO user_xp (user_id, total_xp, level, created_at, updated_at)
		VALUES ($1, $2, 1, $3, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET total_xp = user_xp.total_xp + EXCLUDED.total_xp, updated_at = EXCLUDED.updated_at
		RETURNING total_xp
	`, req.UserID, req.Amount, req.At).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("updating total xp: %w", err)
	}

	level := domain.LevelForXP(total)
	if _, err := tx.Exec(ctx, `UPDATE user_xp SET level = $2 WHERE user_id = $1`, req.UserID, level); err != nil {
		return nil, fmt.Errorf("updating level: %w", err)
	}

	return &domain.AwardResult{
		Awarded:       true,
		Event:         &event,
		TotalXP:       total,
		Level:         level,
		PreviousLevel: domain.LevelForXP(total - req.Amount),
	}, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getUserXP(ctx context.Context, q querier, userID string) (*domain.UserXP, error) {
	rec := domain.UserXP{UserID: userID}
	err := q.QueryRow(ctx, `
		SELECT total_xp, level, created_at, updated_at FROM user_xp WHERE user_id = $1
	`, userID).Scan(&rec.TotalXP, &rec.Level, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		zero := domain.NewUserXP(userID)
		return &zero, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user xp: %w", err)
	}
	return &rec, nil
}

// GetUserXP returns the running total, or a zero record for users who never
// earned XP.
func (r *Repository) GetUserXP(ctx context.Context, userID string) (*domain.UserXP, error) {
	return getUserXP(ctx, r.pool, userID)
}

// ListXPEvents returns the user's most recent ledger rows
func (r *Repository) ListXPEvents(ctx context.Context, userID string, limit int) ([]domain.XPEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, event_type, xp_amount, COALESCE(reference_id, ''), dedupe_key, metadata, created_at
		FROM xp_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing xp events: %w", err)
	}
	defer rows.Close()

	events := []domain.XPEvent{}
	for rows.Next() {
		var e domain.XPEvent
		var metadataJSON []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.EventType, &e.XPAmount, &e.ReferenceID,
			&e.DedupeKey, &metadataJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning xp event: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// AllUserXP returns every user's total, used to rebuild the ranking cache
func (r *Repository) AllUserXP(ctx context.Context) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, total_xp FROM user_xp WHERE total_xp > 0`)
	if err != nil {
		return nil, fmt.Errorf("getting all user xp: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var userID string
		var total int64
		if err := rows.Scan(&userID, &total); err != nil {
			return nil, fmt.Errorf("scanning user xp: %w", err)
		}
		totals[userID] = total
	}
	return totals, rows.Err()
}
