package service

import (
	"context"
	"log/slog"

	"github.com/skatehubba/skate-core/internal/config"
	"github.com/skatehubba/skate-core/internal/domain"
	"github.com/skatehubba/skate-core/internal/redis"
)

// LeaderboardService serves the wins leaderboard and player records
type LeaderboardService struct {
	store   *redis.Store
	players PlayerDirectory
	config  *config.GameConfig
	logger  *slog.Logger
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(
	store *redis.Store,
	players PlayerDirectory,
	cfg *config.GameConfig,
	logger *slog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		store:   store,
		players: players,
		config:  cfg,
		logger:  logger,
	}
}

// Top returns the top players by wins
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]domain.StatsEntry, error) {
	// Validate limit
	if limit <= 0 || limit > s.config.LeaderboardLimit {
		limit = s.config.LeaderboardLimit
	}

	entries, err := s.store.TopPlayers(ctx, limit)
	if err != nil {
		return nil, err
	}
	if s.players == nil || len(entries) == 0 {
		return entries, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.PlayerID
	}
	handles, err := s.players.GetHandles(ctx, ids)
	if err != nil {
		// Don't fail the request if the directory is unavailable
		s.logger.Warn("failed to load player handles", "error", err)
		return entries, nil
	}
	for i := range entries {
		entries[i].Handle = handles[entries[i].PlayerID]
	}
	return entries, nil
}

// PlayerStats returns one player's record
func (s *LeaderboardService) PlayerStats(ctx context.Context, playerID string) (*domain.PlayerStats, error) {
	return s.store.GetPlayerStats(ctx, playerID)
}
