package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mycine-gamification/internal/domain"
)

const challengeColumns = `id, name, description, type, target_value, xp_reward, is_active,
	start_date, end_date, created_at, updated_at`

const progressColumns = `user_id, challenge_id, current_progress, status, completed_at,
	claimed_at, last_reset_at, updated_at`

func scanChallenge(row scanner) (domain.Challenge, error) {
	var c domain.Challenge
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Type, &c.TargetValue, &c.XPReward,
		&c.IsActive, &c.StartDate, &c.EndDate, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanProgress(row scanner) (domain.ChallengeProgress, error) {
	var p domain.ChallengeProgress
	err := row.Scan(&p.UserID, &p.ChallengeID, &p.CurrentProgress, &p.Status, &p.CompletedAt,
		&p.ClaimedAt, &p.LastResetAt, &p.UpdatedAt)
	return p, err
}

func collectChallenges(rows pgx.Rows) ([]domain.Challenge, error) {
	defer rows.Close()
	challenges := []domain.Challenge{}
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning challenge: %w", err)
		}
		challenges = append(challenges, c)
	}
	return challenges, rows.Err()
}

// ListActiveChallenges returns challenges accepting progress at now
func (r *Repository) ListActiveChallenges(ctx context.Context, now time.Time) ([]domain.Challenge, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+challengeColumns+`
		FROM challenges
		WHERE is_active
		  AND (start_date IS NULL OR start_date <= $1)
		  AND (end_date IS NULL OR end_date >= $1)
		ORDER BY type, created_at
	`, now)
	if err != nil {
		return nil, fmt.Errorf("listing active challenges: %w", err)
	}
	return collectChallenges(rows)
}

// ListChallenges returns every challenge definition, including inactive ones
func (r *Repository) ListChallenges(ctx context.Context) ([]domain.Challenge, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+challengeColumns+` FROM challenges ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing challenges: %w", err)
	}
	return collectChallenges(rows)
}

// GetChallenge retrieves a challenge by ID
func (r *Repository) GetChallenge(ctx context.Context, challengeID string) (*domain.Challenge, error) {
	c, err := scanChallenge(r.pool.QueryRow(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, challengeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting challenge: %w", err)
	}
	return &c, nil
}

// ListChallengeProgress returns the stored progress rows of a user
func (r *Repository) ListChallengeProgress(ctx context.Context, userID string) ([]domain.ChallengeProgress, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+progressColumns+` FROM user_challenge_progress WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing challenge progress: %w", err)
	}
	defer rows.Close()

	progress := []domain.ChallengeProgress{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning challenge progress: %w", err)
		}
		progress = append(progress, p)
	}
	return progress, rows.Err()
}

// IncrementChallengeProgress advances every open challenge matching the
// increment's type or id. Each progress row is locked for the
// read-increment-write, stale daily/weekly rows are reset first, and the
// completion transition is applied. No XP is granted here.
func (r *Repository) IncrementChallengeProgress(ctx context.Context, inc domain.ProgressIncrement, now time.Time) ([]domain.ProgressChange, error) {
	if err := inc.Validate(); err != nil {
		return nil, err
	}

	var changes []domain.ProgressChange
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT `+challengeColumns+`
			FROM challenges
			WHERE is_active
			  AND ($1::text = '' OR type = $1)
			  AND ($2::text = '' OR id = $2)
			  AND (start_date IS NULL OR start_date <= $3)
			  AND (end_date IS NULL OR end_date >= $3)
			ORDER BY id
		`, string(inc.ChallengeType), inc.ChallengeID, now)
		if err != nil {
			return fmt.Errorf("selecting challenges: %w", err)
		}
		challenges, err := collectChallenges(rows)
		if err != nil {
			return err
		}

		if inc.ChallengeID != "" && len(challenges) == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM challenges WHERE id = $1)`,
				inc.ChallengeID).Scan(&exists); err != nil {
				return fmt.Errorf("checking challenge: %w", err)
			}
			if !exists {
				return domain.ErrChallengeNotFound
			}
		}

		changes = make([]domain.ProgressChange, 0, len(challenges))
		for _, c := range challenges {
			change, err := incrementOne(ctx, tx, c, inc, now)
			if err != nil {
				return err
			}
			changes = append(changes, change)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("incrementing challenge progress: %w", err)
	}
	return changes, nil
}

func incrementOne(ctx context.Context, tx pgx.Tx, c domain.Challenge, inc domain.ProgressIncrement, now time.Time) (domain.ProgressChange, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO user_challenge_progress (user_id, challenge_id, current_progress, status, last_reset_at, updated_at)
		VALUES ($1, $2, 0, $3, $4, $4)
		ON CONFLICT (user_id, challenge_id) DO NOTHING
	`, inc.UserID, c.ID, string(domain.StatusInProgress), now)
	if err != nil {
		return domain.ProgressChange{}, fmt.Errorf("creating progress row: %w", err)
	}

	p, err := scanProgress(tx.QueryRow(ctx, `
		SELECT `+progressColumns+`
		FROM user_challenge_progress
		WHERE user_id = $1 AND challenge_id = $2
		FOR UPDATE
	`, inc.UserID, c.ID))
	if err != nil {
		return domain.ProgressChange{}, fmt.Errorf("locking progress row: %w", err)
	}

	if p.NeedsReset(c.Type, now) {
		p.Reset(now)
	}
	completed := p.ApplyIncrement(c.TargetValue, inc.Amount, now)

	if err := updateProgress(ctx, tx, p); err != nil {
		return domain.ProgressChange{}, err
	}
	return domain.ProgressChange{Challenge: c, Progress: p, CompletedNow: completed}, nil
}

func updateProgress(ctx context.Context, tx pgx.Tx, p domain.ChallengeProgress) error {
	_, err := tx.Exec(ctx, `
		UPDATE user_challenge_progress
		SET current_progress = $3, status = $4, completed_at = $5, claimed_at = $6,
			last_reset_at = $7, updated_at = $8
		WHERE user_id = $1 AND challenge_id = $2
	`, p.UserID, p.ChallengeID, p.CurrentProgress, string(p.Status), p.CompletedAt, p.ClaimedAt,
		p.LastResetAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating progress row: %w", err)
	}
	return nil
}

// ClaimChallenge moves a completed challenge to claimed and grants its
// reward as a challenge_complete XP event in the same transaction.
func (r *Repository) ClaimChallenge(ctx context.Context, userID, challengeID string, now time.Time) (*domain.ClaimResult, error) {
	var result *domain.ClaimResult
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		c, err := scanChallenge(tx.QueryRow(ctx,
			`SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, challengeID))
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrChallengeNotFound
		}
		if err != nil {
			return fmt.Errorf("getting challenge: %w", err)
		}

		p, err := scanProgress(tx.QueryRow(ctx, `
			SELECT `+progressColumns+`
			FROM user_challenge_progress
			WHERE user_id = $1 AND challenge_id = $2
			FOR UPDATE
		`, userID, challengeID))
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrChallengeNotCompleted
		}
		if err != nil {
			return fmt.Errorf("locking progress row: %w", err)
		}

		if p.NeedsReset(c.Type, now) {
			p.Reset(now)
		}
		if err := p.Claim(now); err != nil {
			return err
		}
		if err := updateProgress(ctx, tx, p); err != nil {
			return err
		}

		req := domain.AwardRequest{
			UserID:      userID,
			EventType:   domain.EventChallengeComplete,
			Amount:      c.XPReward,
			ReferenceID: c.ID,
			DedupeKey:   domain.ChallengeClaimKey(c.ID, domain.PeriodStart(c.Type, now)),
			Metadata:    map[string]interface{}{"challenge_name": c.Name, "challenge_type": string(c.Type)},
			At:          now,
		}
		if err := req.Validate(); err != nil {
			return err
		}
		award, err := awardXPTx(ctx, tx, req)
		if err != nil {
			return err
		}
		result = &domain.ClaimResult{Progress: p, Award: award}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claiming challenge: %w", err)
	}
	return result, nil
}

// InitializeUserChallenges creates missing progress rows for every open
// challenge and returns how many were created
func (r *Repository) InitializeUserChallenges(ctx context.Context, userID string, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO user_challenge_progress (user_id, challenge_id, current_progress, status, last_reset_at, updated_at)
		SELECT $1, id, 0, $2, $3, $3
		FROM challenges
		WHERE is_active
		  AND (start_date IS NULL OR start_date <= $3)
		  AND (end_date IS NULL OR end_date >= $3)
		ON CONFLICT (user_id, challenge_id) DO NOTHING
	`, userID, string(domain.StatusInProgress), now)
	if err != nil {
		return 0, fmt.Errorf("initializing user challenges: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ResetExpiredProgress resets every row of the given type last reset before
// periodStart
func (r *Repository) ResetExpiredProgress(ctx context.Context, t domain.ChallengeType, periodStart, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_challenge_progress p
		SET current_progress = 0, status = $3, completed_at = NULL, claimed_at = NULL,
			last_reset_at = $4, updated_at = $4
		FROM challenges c
		WHERE c.id = p.challenge_id
		  AND c.type = $1
		  AND (p.last_reset_at IS NULL OR p.last_reset_at < $2)
	`, string(t), periodStart, string(domain.StatusInProgress), now)
	if err != nil {
		return 0, fmt.Errorf("resetting %s progress: %w", t, err)
	}
	return tag.RowsAffected(), nil
}

// CreateChallenge inserts a new challenge definition
func (r *Repository) CreateChallenge(ctx context.Context, c domain.Challenge) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO challenges (`+challengeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, c.ID, c.Name, c.Description, string(c.Type), c.TargetValue, c.XPReward, c.IsActive,
		c.StartDate, c.EndDate, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating challenge: %w", err)
	}
	return nil
}

// UpdateChallenge replaces a challenge definition. The type cannot change
// once any user has progress on the challenge.
func (r *Repository) UpdateChallenge(ctx context.Context, c domain.Challenge) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var currentType domain.ChallengeType
		var hasProgress bool
		err := tx.QueryRow(ctx, `
			SELECT type, EXISTS(SELECT 1 FROM user_challenge_progress WHERE challenge_id = $1)
			FROM challenges WHERE id = $1
			FOR UPDATE
		`, c.ID).Scan(&currentType, &hasProgress)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrChallengeNotFound
		}
		if err != nil {
			return fmt.Errorf("getting challenge: %w", err)
		}
		if hasProgress && currentType != c.Type {
			return domain.ErrChallengeTypeLocked
		}

		_, err = tx.Exec(ctx, `
			UPDATE challenges
			SET name = $2, description = $3, type = $4, target_value = $5, xp_reward = $6,
				is_active = $7, start_date = $8, end_date = $9, updated_at = $10
			WHERE id = $1
		`, c.ID, c.Name, c.Description, string(c.Type), c.TargetValue, c.XPReward, c.IsActive,
			c.StartDate, c.EndDate, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("updating challenge: %w", err)
		}
		return nil
	})
}

// DeleteChallenge removes a challenge nobody has progressed on. Once
// progress exists it is deactivated instead and deactivated is true.
func (r *Repository) DeleteChallenge(ctx context.Context, challengeID string, now time.Time) (deactivated bool, err error) {
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var hasProgress bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM user_challenge_progress WHERE challenge_id = $1)
			FROM challenges WHERE id = $1
			FOR UPDATE
		`, challengeID).Scan(&hasProgress)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrChallengeNotFound
		}
		if err != nil {
			return fmt.Errorf("getting challenge: %w", err)
		}

		if hasProgress {
			deactivated = true
			_, err = tx.Exec(ctx, `UPDATE challenges SET is_active = FALSE, updated_at = $2 WHERE id = $1`,
				challengeID, now)
		} else {
			_, err = tx.Exec(ctx, `DELETE FROM challenges WHERE id = $1`, challengeID)
		}
		if err != nil {
			return fmt.Errorf("deleting challenge: %w", err)
		}
		return nil
	})
	return deactivated, err
}
