package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/skatehubba/skate-core/internal/config"
)

// TurnExpirer forfeits games whose turn deadline has passed
type TurnExpirer interface {
	ExpireDue(ctx context.Context, limit int) (int, error)
}

// ExpiryWorker sweeps overdue turns on a fixed interval
type ExpiryWorker struct {
	expirer   TurnExpirer
	config    *config.GameConfig
	logger    *slog.Logger
	scheduler gocron.Scheduler
	mu        sync.Mutex
	running   bool
}

// NewExpiryWorker creates a new turn expiry worker
func NewExpiryWorker(expirer TurnExpirer, cfg *config.GameConfig, logger *slog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		expirer: expirer,
		config:  cfg,
		logger:  logger,
	}
}

// Start schedules the sweep. Overlapping runs are skipped.
func (w *ExpiryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(w.config.ExpiryInterval),
		gocron.NewTask(func() { w.RunOnce(ctx) }),
		gocron.WithName("expire-turns"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return err
	}
	scheduler.Start()

	w.scheduler = scheduler
	w.running = true
	w.logger.Info("expiry worker started", "interval", w.config.ExpiryInterval)
	return nil
}

// Stop waits for an in-flight sweep and stops the schedule
func (w *ExpiryWorker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	if err := w.scheduler.Shutdown(); err != nil {
		return err
	}
	w.logger.Info("expiry worker stopped")
	return nil
}

// IsRunning returns whether the sweep is scheduled
func (w *ExpiryWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce performs a single sweep and returns how many games were forfeited
func (w *ExpiryWorker) RunOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	start := time.Now()
	expired, err := w.expirer.ExpireDue(ctx, w.config.ExpiryBatchSize)
	if err != nil {
		w.logger.Error("turn expiry sweep failed", "error", err)
		return expired
	}
	if expired > 0 {
		w.logger.Info("expired overdue turns", "count", expired, "duration", time.Since(start))
	}
	return expired
}
