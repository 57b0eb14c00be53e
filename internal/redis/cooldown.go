package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/skatehubba/skate-core/internal/domain"
)

// SetCooldown blocks userID until the given time. The key expires with it.
func (s *Store) SetCooldown(ctx context.Context, userID string, until time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Millisecond
	}
	err := s.client.Set(ctx, cooldownKey(userID), until.UnixMilli(), ttl).Err()
	if err != nil {
		return fmt.Errorf("setting cooldown: %w", err)
	}
	return nil
}

// GetCooldown returns the user's cooldown record, or nil when none is stored
func (s *Store) GetCooldown(ctx context.Context, userID string) (*domain.CooldownRecord, error) {
	return loadCooldown(ctx, s.client, userID)
}

// ClearCooldown removes a user's cooldown
func (s *Store) ClearCooldown(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, cooldownKey(userID)).Err(); err != nil {
		return fmt.Errorf("clearing cooldown: %w", err)
	}
	return nil
}

func loadCooldown(ctx context.Context, c getter, userID string) (*domain.CooldownRecord, error) {
	ms, err := c.Get(ctx, cooldownKey(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting cooldown: %w", err)
	}
	return &domain.CooldownRecord{
		UserID:        userID,
		CooldownUntil: time.UnixMilli(ms).UTC(),
	}, nil
}
