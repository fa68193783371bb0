package worker

import (
	"context"
	"sync"
	"time"

	"github.com/mycine-gamification/internal/config"
	"github.com/mycine-gamification/internal/logger"
)

// Rebuilder reloads the ranking cache from the ledger
type Rebuilder interface {
	Rebuild(ctx context.Context, batchSize int) (int, error)
}

// SyncWorker periodically rebuilds the Redis leaderboard from PostgreSQL so
// that cache writes lost to Redis outages are repaired
type SyncWorker struct {
	leaderboard Rebuilder
	config      *config.SyncConfig
	logger      *logger.Logger
	stopCh      chan struct{}
	doneCh      chan struct{}
	mu          sync.Mutex
	running     bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(leaderboard Rebuilder, cfg *config.SyncConfig, log *logger.Logger) *SyncWorker {
	return &SyncWorker{
		leaderboard: leaderboard,
		config:      cfg,
		logger:      log.With("component", "sync_worker"),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start begins the background sync process
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("sync worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background sync process
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("sync worker stopped")
	return nil
}

func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("leaderboard rebuild failed", "error", err)
			}
		}
	}
}

// RunOnce runs a single rebuild; it is also used on startup
func (w *SyncWorker) RunOnce(ctx context.Context) error {
	start := time.Now()
	n, err := w.leaderboard.Rebuild(ctx, w.config.BatchSize)
	if err != nil {
		return err
	}
	w.logger.Info("leaderboard rebuilt", "users", n, "duration", time.Since(start))
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
