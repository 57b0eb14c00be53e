package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/skatehubba/skate-core/internal/domain"
)

// PlayerService manages the handle directory used to invite opponents
type PlayerService struct {
	registry PlayerRegistry
	logger   *slog.Logger
	now      func() time.Time
}

// NewPlayerService creates a new player service
func NewPlayerService(registry PlayerRegistry, logger *slog.Logger) *PlayerService {
	return &PlayerService{
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// Register claims or renames the caller's handle. Handles are unique
// case-insensitively; a taken handle fails with domain.ErrHandleTaken.
func (s *PlayerService) Register(ctx context.Context, userID string, req domain.RegisterPlayerRequest) (*domain.Player, error) {
	player, err := domain.NewPlayer(userID, req, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.registry.UpsertPlayer(ctx, *player); err != nil {
		return nil, err
	}

	s.logger.Info("player registered", "player_id", player.ID, "handle", player.Handle)
	return player, nil
}
