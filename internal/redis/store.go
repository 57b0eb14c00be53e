package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/skatehubba/skate-core/internal/config"
)

const (
	deadlinesKey   = "games:deadlines"
	pendingKey     = "submissions:pending"
	leaderboardKey = "skate:leaderboard:wins"
)

// Store is the transactional document store for games, submissions,
// cooldowns and the stats aggregate.
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

// NewStore connects to Redis and returns a store
func NewStore(cfg *config.RedisConfig, logger *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewStoreWithClient(client, logger), nil
}

// NewStoreWithClient wraps an existing client
func NewStoreWithClient(client *redis.Client, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		logger: logger,
	}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client
func (s *Store) Client() *redis.Client {
	return s.client
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// getter is satisfied by both the client and a WATCH transaction
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// gameKey returns the Redis key for a game document
func gameKey(gameID string) string {
	return fmt.Sprintf("game:%s", gameID)
}

// submissionKey returns the Redis key for a submission document
func submissionKey(submissionID string) string {
	return fmt.Sprintf("submission:%s", submissionID)
}

// cooldownKey returns the Redis key for a user's cooldown
func cooldownKey(userID string) string {
	return fmt.Sprintf("cooldown:%s", userID)
}

// statsKey returns the Redis key for a player's win/loss hash
func statsKey(playerID string) string {
	return fmt.Sprintf("player:%s:stats", playerID)
}
