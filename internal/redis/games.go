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

// GameMutation mutates a game in place. Returning an error aborts the write.
type GameMutation func(g *domain.Game) error

// CreateGame stores a new game with version 1
func (s *Store) CreateGame(ctx context.Context, g *domain.Game) error {
	g.Version = 1
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshaling game: %w", err)
	}

	ok, err := s.client.SetNX(ctx, gameKey(g.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("creating game: %w", err)
	}
	if !ok {
		return fmt.Errorf("creating game %s: %w", g.ID, domain.ErrConflict)
	}
	return nil
}

// GetGame loads a game document
func (s *Store) GetGame(ctx context.Context, gameID string) (*domain.Game, error) {
	return loadGame(ctx, s.client, gameID)
}

// UpdateGame runs one optimistic read-modify-write on a game. The key is
// WATCHed, so a concurrent commit makes EXEC fail with redis.TxFailedErr and
// nothing is written. A transition into COMPLETED also bumps both players'
// stats and the wins leaderboard inside the same MULTI.
func (s *Store) UpdateGame(ctx context.Context, gameID string, fn GameMutation) (*domain.Game, error) {
	key := gameKey(gameID)
	var updated *domain.Game

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		g, err := loadGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		wasCompleted := g.Status == domain.GameStatusCompleted

		if err := fn(g); err != nil {
			return err
		}
		g.Version++

		data, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("marshaling game: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if g.Status == domain.GameStatusActive && g.TurnDeadline != nil {
				pipe.ZAdd(ctx, deadlinesKey, redis.Z{
					Score:  float64(g.TurnDeadline.UnixMilli()),
					Member: g.ID,
				})
			} else {
				pipe.ZRem(ctx, deadlinesKey, g.ID)
			}
			if !wasCompleted && g.Status == domain.GameStatusCompleted && g.WinnerID != "" {
				queueResult(ctx, pipe, g.WinnerID, g.LoserID())
			}
			return nil
		})
		if err != nil {
			return err
		}
		updated = g
		return nil
	}, key)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DueGames returns ids of active games whose turn deadline is at or before now
func (s *Store) DueGames(ctx context.Context, now time.Time, limit int) ([]string, error) {
	ids, err := s.client.ZRangeByScore(ctx, deadlinesKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("getting due games: %w", err)
	}
	return ids, nil
}

func loadGame(ctx context.Context, c getter, gameID string) (*domain.Game, error) {
	data, err := c.Get(ctx, gameKey(gameID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrGameNotFound
		}
		return nil, fmt.Errorf("getting game: %w", err)
	}

	var g domain.Game
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("unmarshaling game: %w", err)
	}
	return &g, nil
}
