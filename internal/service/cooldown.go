package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/skatehubba/skate-core/internal/domain"
	"github.com/skatehubba/skate-core/internal/redis"
)

// CooldownService gates re-submission after a user abandons an attempt
type CooldownService struct {
	store  *redis.Store
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewCooldownService creates a new cooldown service
func NewCooldownService(store *redis.Store, logger *slog.Logger) *CooldownService {
	return &CooldownService{
		store:  store,
		window: domain.CooldownWindow,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the service clock
func (s *CooldownService) WithClock(now func() time.Time) *CooldownService {
	s.now = now
	return s
}

// Set starts a cooldown for userID ending one window from now
func (s *CooldownService) Set(ctx context.Context, userID string) (*domain.CooldownRecord, error) {
	if userID == "" {
		return nil, domain.ErrMissingIdentity
	}
	until := s.now().UTC().Add(s.window)
	if err := s.store.SetCooldown(ctx, userID, until, s.window); err != nil {
		return nil, err
	}

	s.logger.Info("cooldown set", "user_id", userID, "cooldown_until", until)
	return &domain.CooldownRecord{UserID: userID, CooldownUntil: until}, nil
}

// IsOnCooldown reports whether userID is currently blocked
func (s *CooldownService) IsOnCooldown(ctx context.Context, userID string) (bool, error) {
	rec, err := s.store.GetCooldown(ctx, userID)
	if err != nil {
		return false, err
	}
	return rec.Active(s.now()), nil
}

// Remaining returns how long userID stays blocked, or zero
func (s *CooldownService) Remaining(ctx context.Context, userID string) (time.Duration, error) {
	rec, err := s.store.GetCooldown(ctx, userID)
	if err != nil {
		return 0, err
	}
	return rec.Remaining(s.now()), nil
}

// Status returns the read shape used by the API
func (s *CooldownService) Status(ctx context.Context, userID string) (*domain.CooldownStatus, error) {
	if userID == "" {
		return nil, domain.ErrMissingIdentity
	}
	rec, err := s.store.GetCooldown(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	remaining := rec.Remaining(now)
	status := &domain.CooldownStatus{
		UserID:      userID,
		OnCooldown:  remaining > 0,
		RemainingMS: remaining.Milliseconds(),
		Remaining:   domain.FormatRemaining(remaining),
	}
	if status.OnCooldown {
		until := rec.CooldownUntil
		status.AvailableAt = &until
	}
	return status, nil
}

// Clear lifts userID's cooldown
func (s *CooldownService) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrInvalidRequest
	}
	return s.store.ClearCooldown(ctx, userID)
}
