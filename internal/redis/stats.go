package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/skatehubba/skate-core/internal/domain"
)

// queueResult adds a completed game's result to an open MULTI block
func queueResult(ctx context.Context, pipe redis.Pipeliner, winnerID, loserID string) {
	pipe.HIncrBy(ctx, statsKey(winnerID), "wins", 1)
	pipe.ZIncrBy(ctx, leaderboardKey, 1, winnerID)
	if loserID != "" {
		pipe.HIncrBy(ctx, statsKey(loserID), "losses", 1)
		// zero increment keeps winless players on the board
		pipe.ZIncrBy(ctx, leaderboardKey, 0, loserID)
	}
}

// GetPlayerStats returns a player's win/loss record
func (s *Store) GetPlayerStats(ctx context.Context, playerID string) (*domain.PlayerStats, error) {
	result, err := s.client.HGetAll(ctx, statsKey(playerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting player stats: %w", err)
	}
	if len(result) == 0 {
		return nil, domain.ErrPlayerNotFound
	}
	return statsFromHash(playerID, result), nil
}

// TopPlayers returns the top n players by wins (descending order)
func (s *Store) TopPlayers(ctx context.Context, n int) ([]domain.StatsEntry, error) {
	return s.rangeStats(ctx, 0, int64(n-1))
}

// GetAllStats returns every player's record (for sync)
func (s *Store) GetAllStats(ctx context.Context) ([]domain.PlayerStats, error) {
	entries, err := s.rangeStats(ctx, 0, -1)
	if err != nil {
		return nil, err
	}
	stats := make([]domain.PlayerStats, len(entries))
	for i, e := range entries {
		stats[i] = domain.PlayerStats{PlayerID: e.PlayerID, Wins: e.Wins, Losses: e.Losses}
	}
	return stats, nil
}

// BatchSetStats overwrites player records using pipelining
func (s *Store) BatchSetStats(ctx context.Context, stats []domain.PlayerStats) error {
	if len(stats) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, st := range stats {
		pipe.HSet(ctx, statsKey(st.PlayerID), "wins", st.Wins, "losses", st.Losses)
		pipe.ZAdd(ctx, leaderboardKey, redis.Z{
			Score:  float64(st.Wins),
			Member: st.PlayerID,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("batch setting stats: %w", err)
	}
	return nil
}

// PlayerCount returns the number of ranked players
func (s *Store) PlayerCount(ctx context.Context) (int64, error) {
	count, err := s.client.ZCard(ctx, leaderboardKey).Result()
	if err != nil {
		return 0, fmt.Errorf("getting count: %w", err)
	}
	return count, nil
}

func (s *Store) rangeStats(ctx context.Context, start, stop int64) ([]domain.StatsEntry, error) {
	results, err := s.client.ZRevRangeWithScores(ctx, leaderboardKey, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("getting leaderboard range: %w", err)
	}
	if len(results) == 0 {
		return []domain.StatsEntry{}, nil
	}

	// Use pipeline to fetch losses alongside the ranking
	pipe := s.client.Pipeline()
	lossCmds := make([]*redis.StringCmd, len(results))
	for i, result := range results {
		lossCmds[i] = pipe.HGet(ctx, statsKey(result.Member.(string)), "losses")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("getting losses: %w", err)
	}

	entries := make([]domain.StatsEntry, len(results))
	for i, result := range results {
		losses, _ := lossCmds[i].Int64()
		entries[i] = domain.StatsEntry{
			Rank:     start + int64(i) + 1,
			PlayerID: result.Member.(string),
			Wins:     int64(result.Score),
			Losses:   losses,
		}
	}
	return entries, nil
}

func statsFromHash(playerID string, h map[string]string) *domain.PlayerStats {
	wins, _ := strconv.ParseInt(h["wins"], 10, 64)
	losses, _ := strconv.ParseInt(h["losses"], 10, 64)
	return &domain.PlayerStats{PlayerID: playerID, Wins: wins, Losses: losses}
}
