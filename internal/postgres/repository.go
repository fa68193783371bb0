package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mycine-gamification/internal/config"
	"github.com/mycine-gamification/internal/logger"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(ctx context.Context, cfg *config.PostgresConfig, log *logger.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: log.With("component", "postgres"),
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// migrations creates the schema the service owns. Titles and categories are
// written by the catalogue import job and only read here.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS user_xp (
		user_id VARCHAR(64) PRIMARY KEY,
		total_xp BIGINT NOT NULL DEFAULT 0 CHECK (total_xp >= 0),
		level INT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS xp_events (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		event_type VARCHAR(32) NOT NULL,
		xp_amount BIGINT NOT NULL CHECK (xp_amount >= 0),
		reference_id VARCHAR(64),
		dedupe_key VARCHAR(128) NOT NULL,
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, event_type, dedupe_key)
	)`,
	`CREATE TABLE IF NOT EXISTS challenges (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		type VARCHAR(16) NOT NULL CHECK (type IN ('daily', 'weekly', 'unique')),
		target_value INT NOT NULL CHECK (target_value > 0),
		xp_reward BIGINT NOT NULL DEFAULT 0 CHECK (xp_reward >= 0),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		start_date TIMESTAMPTZ,
		end_date TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS user_challenge_progress (
		user_id VARCHAR(64) NOT NULL,
		challenge_id VARCHAR(64) NOT NULL REFERENCES challenges(id),
		current_progress INT NOT NULL DEFAULT 0,
		status VARCHAR(16) NOT NULL DEFAULT 'in_progress',
		completed_at TIMESTAMPTZ,
		claimed_at TIMESTAMPTZ,
		last_reset_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, challenge_id)
	)`,
	`CREATE TABLE IF NOT EXISTS achievements (
		id VARCHAR(64) PRIMARY KEY,
		code VARCHAR(128) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		icon VARCHAR(64) NOT NULL DEFAULT '',
		requirement_type VARCHAR(32) NOT NULL,
		requirement_value INT NOT NULL CHECK (requirement_value > 0),
		xp_reward BIGINT NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS user_achievements (
		user_id VARCHAR(64) NOT NULL,
		achievement_id VARCHAR(64) NOT NULL REFERENCES achievements(id),
		unlocked_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, achievement_id)
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id VARCHAR(64) PRIMARY KEY,
		username VARCHAR(64) NOT NULL DEFAULT '',
		display_name VARCHAR(128) NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		profile_completed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS user_roles (
		user_id VARCHAR(64) NOT NULL,
		role VARCHAR(32) NOT NULL,
		PRIMARY KEY (user_id, role)
	)`,
	`CREATE TABLE IF NOT EXISTS titles (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(128) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS title_categories (
		title_id VARCHAR(64) NOT NULL,
		category_id VARCHAR(64) NOT NULL,
		PRIMARY KEY (title_id, category_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		title_id VARCHAR(64) NOT NULL,
		rating INT NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment TEXT NOT NULL DEFAULT '',
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, title_id)
	)`,
	`CREATE TABLE IF NOT EXISTS admin_moderation_logs (
		id VARCHAR(64) PRIMARY KEY,
		admin_id VARCHAR(64) NOT NULL,
		target_id VARCHAR(64) NOT NULL,
		target_type VARCHAR(32) NOT NULL,
		action VARCHAR(32) NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_xp_events_user ON xp_events(user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_user_xp_total ON user_xp(total_xp DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_challenges_active ON challenges(is_active, type)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_user ON reviews(user_id) WHERE NOT is_deleted`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_created ON reviews(created_at)`,
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	for _, migration := range migrations {
		if _, err := r.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed", "count", len(migrations))
	return nil
}

// scanner is satisfied by pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
