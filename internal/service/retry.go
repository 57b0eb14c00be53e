package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"github.com/redis/go-redis/v9"
	"github.com/skatehubba/skate-core/internal/config"
	"github.com/skatehubba/skate-core/internal/domain"
	"github.com/skatehubba/skate-core/internal/metrics"
)

// txClassifier retries optimistic-lock conflicts and network failures only.
type txClassifier struct{}

func (txClassifier) Classify(err error) retrier.Action {
	switch {
	case err == nil:
		return retrier.Succeed
	case isRetryable(err):
		return retrier.Retry
	default:
		return retrier.Fail
	}
}

func isRetryable(err error) bool {
	if domain.IsTerminal(err) {
		return false
	}
	if errors.Is(err, redis.TxFailedErr) || errors.Is(err, domain.ErrTransient) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// TxRunner runs store transactions with bounded exponential backoff.
type TxRunner struct {
	retrier     *retrier.Retrier
	maxAttempts int
	metrics     *metrics.Manager
	logger      *slog.Logger
}

// NewTxRunner creates a runner from the voting configuration
func NewTxRunner(cfg *config.VotingConfig, m *metrics.Manager, logger *slog.Logger) *TxRunner {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	r := retrier.New(cappedBackoff(attempts-1, cfg.BaseBackoff, cfg.MaxBackoff), txClassifier{})
	r.SetJitter(0.5)

	return &TxRunner{
		retrier:     r,
		maxAttempts: attempts,
		metrics:     m,
		logger:      logger,
	}
}

// cappedBackoff doubles from base and stays at limit once it gets there.
func cappedBackoff(n int, base, limit time.Duration) []time.Duration {
	backoff := retrier.ExponentialBackoff(n, base)
	if limit <= 0 {
		return backoff
	}
	capped := false
	for i, d := range backoff {
		if capped || d <= 0 || d > limit {
			backoff[i] = limit
			capped = true
		}
	}
	return backoff
}

// Run executes fn until it succeeds, fails terminally or the attempts run
// out. Exhaustion returns an error wrapping domain.ErrTransient.
func (r *TxRunner) Run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	err := r.retrier.RunCtx(ctx, func(ctx context.Context) error {
		if attempt > 0 {
			r.metrics.RecordTxRetry(op)
		}
		attempt++
		return fn(ctx)
	})
	if err == nil || !isRetryable(err) {
		return err
	}

	r.logger.Warn("transaction retries exhausted",
		"op", op,
		"attempts", attempt,
		"error", err,
	)
	if errors.Is(err, domain.ErrTransient) {
		return err
	}
	return fmt.Errorf("%s after %d attempts: %w: %w", op, attempt, domain.ErrTransient, err)
}
