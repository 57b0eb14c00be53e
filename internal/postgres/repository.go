package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skatehubba/skate-core/internal/config"
	"github.com/skatehubba/skate-core/internal/domain"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL-based data access for the durable side of
// the service: the player directory, stats snapshots and audit trails.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks the connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id VARCHAR(64) PRIMARY KEY,
			handle VARCHAR(64) NOT NULL UNIQUE,
			avatar_url TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS player_stats (
			player_id VARCHAR(64) PRIMARY KEY,
			wins BIGINT NOT NULL DEFAULT 0,
			losses BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS completed_games (
			id VARCHAR(64) PRIMARY KEY,
			challenger_id VARCHAR(64) NOT NULL,
			opponent_id VARCHAR(64) NOT NULL,
			winner_id VARCHAR(64),
			forfeited_by VARCHAR(64),
			game_length VARCHAR(8) NOT NULL,
			document JSONB NOT NULL,
			completed_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS game_events (
			id BIGSERIAL PRIMARY KEY,
			game_id VARCHAR(64) NOT NULL,
			actor_id VARCHAR(64),
			event_type VARCHAR(20) NOT NULL,
			version BIGINT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS vote_events (
			id BIGSERIAL PRIMARY KEY,
			submission_id VARCHAR(64) NOT NULL,
			judge_id VARCHAR(64) NOT NULL,
			vote VARCHAR(10) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(submission_id, judge_id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_players_handle_lower ON players(LOWER(handle))`,
		`CREATE INDEX IF NOT EXISTS idx_player_stats_wins ON player_stats(wins DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_game_events_game ON game_events(game_id, version)`,
		`CREATE INDEX IF NOT EXISTS idx_completed_games_players ON completed_games(challenger_id, opponent_id)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// UpsertPlayer inserts or updates a directory entry
func (r *Repository) UpsertPlayer(ctx context.Context, player domain.Player) error {
	query := `
		INSERT INTO players (id, handle, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id)
		DO UPDATE SET handle = $2, avatar_url = $3, updated_at = $4
	`
	_, err := r.pool.Exec(ctx, query, player.ID, player.Handle, player.AvatarURL, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrHandleTaken
		}
		return fmt.Errorf("upserting player: %w", err)
	}
	return nil
}

// ResolveHandle looks a player up by handle (case-insensitive)
func (r *Repository) ResolveHandle(ctx context.Context, handle string) (*domain.Player, error) {
	query := `
		SELECT id, handle, COALESCE(avatar_url, ''), created_at, updated_at
		FROM players
		WHERE LOWER(handle) = LOWER($1)
	`
	var player domain.Player
	err := r.pool.QueryRow(ctx, query, handle).Scan(
		&player.ID,
		&player.Handle,
		&player.AvatarURL,
		&player.CreatedAt,
		&player.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("resolving handle: %w", err)
	}
	return &player, nil
}

// GetHandles returns handles for the given player ids; unknown ids are omitted
func (r *Repository) GetHandles(ctx context.Context, playerIDs []string) (map[string]string, error) {
	handles := make(map[string]string, len(playerIDs))
	if len(playerIDs) == 0 {
		return handles, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT id, handle FROM players WHERE id = ANY($1)`, playerIDs)
	if err != nil {
		return nil, fmt.Errorf("getting handles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, handle string
		if err := rows.Scan(&id, &handle); err != nil {
			return nil, fmt.Errorf("scanning handle: %w", err)
		}
		handles[id] = handle
	}
	return handles, rows.Err()
}

// GetAllStats retrieves every player's record (for restoring Redis)
func (r *Repository) GetAllStats(ctx context.Context) ([]domain.PlayerStats, error) {
	rows, err := r.pool.Query(ctx, `SELECT player_id, wins, losses FROM player_stats`)
	if err != nil {
		return nil, fmt.Errorf("getting all stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.PlayerStats
	for rows.Next() {
		var st domain.PlayerStats
		if err := rows.Scan(&st.PlayerID, &st.Wins, &st.Losses); err != nil {
			return nil, fmt.Errorf("scanning stats: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// BatchUpsertStats writes a snapshot of player records efficiently
func (r *Repository) BatchUpsertStats(ctx context.Context, stats []domain.PlayerStats) error {
	if len(stats) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO player_stats (player_id, wins, losses, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id)
		DO UPDATE SET wins = $2, losses = $3, updated_at = $4
	`
	now := time.Now()

	for _, st := range stats {
		batch.Queue(query, st.PlayerID, st.Wins, st.Losses, now)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range stats {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch upserting stats: %w", err)
		}
	}
	return nil
}

// ArchiveGame stores the final document of a completed game
func (r *Repository) ArchiveGame(ctx context.Context, g *domain.Game) error {
	doc, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshaling game: %w", err)
	}

	completedAt := g.UpdatedAt
	if g.CompletedAt != nil {
		completedAt = *g.CompletedAt
	}

	query := `
		INSERT INTO completed_games (id, challenger_id, opponent_id, winner_id, forfeited_by, game_length, document, completed_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = r.pool.Exec(ctx, query,
		g.ID,
		g.ChallengerID,
		g.OpponentID,
		g.WinnerID,
		g.ForfeitedBy,
		string(g.GameLength),
		doc,
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("archiving game: %w", err)
	}
	return nil
}

// RecordGameEvent records a committed game transition for auditing
func (r *Repository) RecordGameEvent(ctx context.Context, event domain.GameEvent) error {
	query := `
		INSERT INTO game_events (game_id, actor_id, event_type, version, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		event.GameID,
		event.ActorID,
		event.EventType,
		event.Version,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("recording game event: %w", err)
	}
	return nil
}

// RecordVoteEvent records an accepted judge vote for auditing
func (r *Repository) RecordVoteEvent(ctx context.Context, event domain.VoteEvent) error {
	query := `
		INSERT INTO vote_events (submission_id, judge_id, vote, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (submission_id, judge_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		event.SubmissionID,
		event.JudgeID,
		event.Vote,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("recording vote event: %w", err)
	}
	return nil
}
