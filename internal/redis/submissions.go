package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/skatehubba/skate-core/internal/domain"
)

// SubmissionMutation mutates a submission in place. Returning an error aborts the write.
type SubmissionMutation func(sub *domain.Submission) error

// CreateSubmission writes a submission and its queue entry. The submitter's
// cooldown key is WATCHed and checked against now inside the transaction, so
// a cooldown set concurrently either blocks this write or aborts it.
func (s *Store) CreateSubmission(ctx context.Context, sub *domain.Submission, now time.Time) error {
	cdKey := cooldownKey(sub.UserID)
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshaling submission: %w", err)
	}

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		rec, err := loadCooldown(ctx, tx, sub.UserID)
		if err != nil {
			return err
		}
		if rec.Active(now) {
			return domain.ErrCooldownActive
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, submissionKey(sub.ID), data, 0)
			pipe.ZAdd(ctx, pendingKey, redis.Z{
				Score:  float64(sub.SubmittedAt.UnixMilli()),
				Member: sub.ID,
			})
			return nil
		})
		return err
	}, cdKey)
}

// GetSubmission loads a submission document
func (s *Store) GetSubmission(ctx context.Context, submissionID string) (*domain.Submission, error) {
	return loadSubmission(ctx, s.client, submissionID)
}

// UpdateSubmission runs one optimistic read-modify-write on a submission.
// Counters, judgesVoted, status and the pending index change together or not at all.
func (s *Store) UpdateSubmission(ctx context.Context, submissionID string, fn SubmissionMutation) (*domain.Submission, error) {
	key := submissionKey(submissionID)
	var updated *domain.Submission

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		sub, err := loadSubmission(ctx, tx, submissionID)
		if err != nil {
			return err
		}
		if err := fn(sub); err != nil {
			return err
		}

		data, err := json.Marshal(sub)
		if err != nil {
			return fmt.Errorf("marshaling submission: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if sub.Status != domain.SubmissionPending {
				pipe.ZRem(ctx, pendingKey, sub.ID)
			}
			return nil
		})
		if err != nil {
			return err
		}
		updated = sub
		return nil
	}, key)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// PendingSubmissions returns pending submissions oldest first. When after is
// non-zero only submissions strictly newer than it are returned.
func (s *Store) PendingSubmissions(ctx context.Context, after time.Time, offset, count int) ([]*domain.Submission, error) {
	lower := "-inf"
	if !after.IsZero() {
		lower = "(" + strconv.FormatInt(after.UnixMilli(), 10)
	}

	ids, err := s.client.ZRangeByScore(ctx, pendingKey, &redis.ZRangeBy{
		Min:    lower,
		Max:    "+inf",
		Offset: int64(offset),
		Count:  int64(count),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("getting pending queue: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Submission{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = submissionKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("loading pending submissions: %w", err)
	}

	subs := make([]*domain.Submission, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry outlived its document
			s.logger.Warn("pending submission missing", "submission_id", ids[i])
			continue
		}
		var sub domain.Submission
		if err := json.Unmarshal([]byte(raw), &sub); err != nil {
			return nil, fmt.Errorf("unmarshaling submission: %w", err)
		}
		if sub.Status != domain.SubmissionPending {
			continue
		}
		subs = append(subs, &sub)
	}
	return subs, nil
}

// PendingCount returns the size of the pending index
func (s *Store) PendingCount(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, pendingKey).Result()
	if err != nil {
		return 0, fmt.Errorf("counting pending queue: %w", err)
	}
	return n, nil
}

func loadSubmission(ctx context.Context, c getter, submissionID string) (*domain.Submission, error) {
	data, err := c.Get(ctx, submissionKey(submissionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("getting submission: %w", err)
	}

	var sub domain.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("unmarshaling submission: %w", err)
	}
	return &sub, nil
}
