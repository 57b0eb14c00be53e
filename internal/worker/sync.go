package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skatehubba/skate-core/internal/config"
	"github.com/skatehubba/skate-core/internal/domain"
)

// StatsCache is the live win/loss store
type StatsCache interface {
	GetAllStats(ctx context.Context) ([]domain.PlayerStats, error)
	BatchSetStats(ctx context.Context, stats []domain.PlayerStats) error
	PlayerCount(ctx context.Context) (int64, error)
}

// StatsArchive is the durable copy of player records
type StatsArchive interface {
	GetAllStats(ctx context.Context) ([]domain.PlayerStats, error)
	BatchUpsertStats(ctx context.Context, stats []domain.PlayerStats) error
}

// SyncWorker periodically snapshots player stats from Redis into PostgreSQL
type SyncWorker struct {
	cache   StatsCache
	archive StatsArchive
	config  *config.SyncConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(
	cache StatsCache,
	archive StatsArchive,
	cfg *config.SyncConfig,
	logger *slog.Logger,
) *SyncWorker {
	return &SyncWorker{
		cache:   cache,
		archive: archive,
		config:  cfg,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
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

// Stop stops the background sync process after a final snapshot
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
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			w.syncAll(flushCtx)
			cancel()
			return
		case <-ticker.C:
			w.syncAll(ctx)
		}
	}
}

func (w *SyncWorker) syncAll(ctx context.Context) {
	w.logger.Info("starting stats sync cycle")
	startTime := time.Now()

	count, err := w.SyncToDatabase(ctx)
	if err != nil {
		w.logger.Error("failed to sync stats", "error", err, "synced", count)
		return
	}

	w.logger.Info("stats sync cycle completed",
		"duration", time.Since(startTime),
		"synced", count,
	)
}

// SyncToDatabase copies every player record from Redis to PostgreSQL in
// batches. It returns the number of records written.
func (w *SyncWorker) SyncToDatabase(ctx context.Context) (int, error) {
	stats, err := w.cache.GetAllStats(ctx)
	if err != nil {
		return 0, err
	}
	if len(stats) == 0 {
		w.logger.Debug("no stats to sync")
		return 0, nil
	}

	batchSize := w.config.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}

	written := 0
	for start := 0; start < len(stats); start += batchSize {
		end := min(start+batchSize, len(stats))
		if err := w.archive.BatchUpsertStats(ctx, stats[start:end]); err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}

// SyncFromDatabase restores player records into an empty Redis. A populated
// Redis is left untouched since it holds the newest counts.
func (w *SyncWorker) SyncFromDatabase(ctx context.Context) error {
	existing, err := w.cache.PlayerCount(ctx)
	if err != nil {
		return err
	}
	if existing > 0 {
		w.logger.Info("redis already holds stats, skipping restore", "players", existing)
		return nil
	}

	stats, err := w.archive.GetAllStats(ctx)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		w.logger.Debug("no stats to restore from database")
		return nil
	}

	if err := w.cache.BatchSetStats(ctx, stats); err != nil {
		return err
	}

	w.logger.Info("restored stats from database", "players", len(stats))
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single sync cycle
func (w *SyncWorker) RunOnce(ctx context.Context) {
	w.syncAll(ctx)
}
