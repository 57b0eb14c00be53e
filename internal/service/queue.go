package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/skatehubba/skate-core/internal/config"
	"github.com/skatehubba/skate-core/internal/domain"
	"github.com/skatehubba/skate-core/internal/metrics"
	"github.com/skatehubba/skate-core/internal/redis"
)

// QueueService is the read-only, oldest-first view of pending submissions
type QueueService struct {
	store   *redis.Store
	config  *config.VotingConfig
	metrics *metrics.Manager
	logger  *slog.Logger
}

// NewQueueService creates a new queue service
func NewQueueService(store *redis.Store, cfg *config.VotingConfig, m *metrics.Manager, logger *slog.Logger) *QueueService {
	return &QueueService{
		store:   store,
		config:  cfg,
		metrics: m,
		logger:  logger,
	}
}

// FetchQueue returns up to limit pending submissions, oldest first
func (s *QueueService) FetchQueue(ctx context.Context, limit int) ([]*domain.Submission, error) {
	subs, err := s.store.PendingSubmissions(ctx, time.Time{}, 0, s.clampLimit(limit))
	if err != nil {
		return nil, err
	}
	s.observeQueue(ctx)
	return subs, nil
}

// FetchQueueForJudge returns pending submissions judgeID can still vote on:
// not their own and not already voted. after is an exclusive submittedAt cursor.
func (s *QueueService) FetchQueueForJudge(ctx context.Context, judgeID string, limit int, after time.Time) ([]*domain.Submission, error) {
	if judgeID == "" {
		return nil, domain.ErrMissingIdentity
	}
	limit = s.clampLimit(limit)
	pageSize := max(limit*2, s.config.QueueDefaultLimit)

	result := make([]*domain.Submission, 0, limit)
	for offset := 0; len(result) < limit; offset += pageSize {
		page, err := s.store.PendingSubmissions(ctx, after, offset, pageSize)
		if err != nil {
			return nil, err
		}
		for _, sub := range page {
			if sub.UserID == judgeID || sub.Judging.HasVoted(judgeID) {
				continue
			}
			result = append(result, sub)
			if len(result) == limit {
				break
			}
		}
		if len(page) < pageSize {
			break
		}
	}

	s.observeQueue(ctx)
	return result, nil
}

func (s *QueueService) clampLimit(limit int) int {
	if limit <= 0 {
		limit = s.config.QueueDefaultLimit
	}
	if limit > s.config.QueueMaxLimit {
		limit = s.config.QueueMaxLimit
	}
	return limit
}

func (s *QueueService) observeQueue(ctx context.Context) {
	n, err := s.store.PendingCount(ctx)
	if err != nil {
		s.logger.Debug("failed to count pending queue", "error", err)
		return
	}
	s.metrics.SetPendingQueueSize(n)
}
