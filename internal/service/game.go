package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skatehubba/skate-core/internal/config"
	"github.com/skatehubba/skate-core/internal/domain"
	"github.com/skatehubba/skate-core/internal/metrics"
	"github.com/skatehubba/skate-core/internal/redis"
)

// errTurnLive aborts an expiry transaction when the deadline has not passed.
var errTurnLive = errors.New("turn still live")

// GameService runs the head-to-head game state machine against the store
type GameService struct {
	store   *redis.Store
	players PlayerDirectory
	archive GameArchive
	tx      *TxRunner
	config  *config.GameConfig
	metrics *metrics.Manager
	logger  *slog.Logger
	now     func() time.Time
}

// NewGameService creates a new game service
func NewGameService(
	store *redis.Store,
	players PlayerDirectory,
	archive GameArchive,
	tx *TxRunner,
	cfg *config.GameConfig,
	m *metrics.Manager,
	logger *slog.Logger,
) *GameService {
	return &GameService{
		store:   store,
		players: players,
		archive: archive,
		tx:      tx,
		config:  cfg,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock replaces the service clock
func (s *GameService) WithClock(now func() time.Time) *GameService {
	s.now = now
	return s
}

// CreateGame opens a game with the challenger's first trick already set
func (s *GameService) CreateGame(ctx context.Context, challengerID string, req domain.CreateGameRequest) (*domain.Game, error) {
	if challengerID == "" {
		return nil, domain.ErrMissingIdentity
	}
	length, err := domain.ParseGameLength(req.GameLength)
	if err != nil {
		return nil, err
	}

	opponentID := ""
	if handle := strings.TrimSpace(req.OpponentHandle); handle != "" {
		if s.players == nil {
			return nil, domain.ErrPlayerNotFound
		}
		player, err := s.players.ResolveHandle(ctx, handle)
		if err != nil {
			return nil, err
		}
		if player.ID == challengerID {
			return nil, domain.ErrCannotJoinOwnGame
		}
		opponentID = player.ID
	}

	g, err := domain.NewGame(uuid.NewString(), challengerID, opponentID, req.TrickVideoURL, length, s.now().UTC())
	if err != nil {
		return nil, err
	}

	err = s.tx.Run(ctx, "create_game", func(ctx context.Context) error {
		return s.store.CreateGame(ctx, g)
	})
	if err != nil {
		return nil, fmt.Errorf("creating game: %w", err)
	}

	s.logger.Info("game created",
		"game_id", g.ID,
		"challenger_id", challengerID,
		"opponent_id", opponentID,
		"game_length", g.GameLength,
	)
	s.recordEvent(ctx, g, challengerID, domain.GameEventCreated)
	return g, nil
}

// GetGame returns a game by ID
func (s *GameService) GetGame(ctx context.Context, gameID string) (*domain.Game, error) {
	return s.store.GetGame(ctx, gameID)
}

// JoinGame binds userID as the opponent and activates the game
func (s *GameService) JoinGame(ctx context.Context, gameID, userID string) (*domain.Game, error) {
	if userID == "" {
		return nil, domain.ErrMissingIdentity
	}
	g, err := s.mutate(ctx, "join_game", gameID, func(g *domain.Game) error {
		return g.Join(userID, s.now().UTC(), s.config.TurnTimeout)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("game joined", "game_id", gameID, "opponent_id", userID)
	s.recordEvent(ctx, g, userID, domain.GameEventJoined)
	return g, nil
}

// SubmitTurn applies one turn action by userID
func (s *GameService) SubmitTurn(ctx context.Context, gameID, userID string, action domain.TurnAction) (*domain.Game, error) {
	if userID == "" {
		return nil, domain.ErrMissingIdentity
	}
	if action == nil {
		return nil, domain.ErrInvalidAction
	}

	var completed bool
	g, err := s.mutate(ctx, "submit_turn", gameID, func(g *domain.Game) error {
		if err := g.ApplyTurn(userID, action, s.now().UTC(), s.config.TurnTimeout); err != nil {
			return err
		}
		completed = g.Status == domain.GameStatusCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTurn(string(action.Kind()))
	s.logger.Debug("turn applied",
		"game_id", gameID,
		"user_id", userID,
		"action", action.Kind(),
		"version", g.Version,
	)
	s.recordEvent(ctx, g, userID, string(action.Kind()))
	if completed {
		s.finish(ctx, g, "letters")
	}
	return g, nil
}

// Forfeit ends an active game with userID conceding
func (s *GameService) Forfeit(ctx context.Context, gameID, userID string) (*domain.Game, error) {
	if userID == "" {
		return nil, domain.ErrMissingIdentity
	}
	g, err := s.mutate(ctx, "forfeit", gameID, func(g *domain.Game) error {
		return g.Forfeit(userID, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, g, userID, domain.GameEventForfeit)
	s.finish(ctx, g, "forfeit")
	return g, nil
}

// ExpireTurn forfeits the game for the player whose turn deadline passed.
// It reports false, without writing, when the turn is still live.
func (s *GameService) ExpireTurn(ctx context.Context, gameID string) (*domain.Game, bool, error) {
	var loserID string
	g, err := s.mutate(ctx, "expire_turn", gameID, func(g *domain.Game) error {
		loserID = g.CurrentTurnID
		if !g.ExpireTurn(s.now().UTC()) {
			return errTurnLive
		}
		return nil
	})
	if errors.Is(err, errTurnLive) {
		current, err := s.store.GetGame(ctx, gameID)
		return current, false, err
	}
	if err != nil {
		return nil, false, err
	}

	s.logger.Info("turn expired", "game_id", gameID, "forfeited_by", loserID)
	s.recordEvent(ctx, g, loserID, domain.GameEventExpired)
	s.finish(ctx, g, "expired")
	return g, true, nil
}

// ExpireDue sweeps up to limit games whose turn deadline has passed
func (s *GameService) ExpireDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = s.config.ExpiryBatchSize
	}
	ids, err := s.store.DueGames(ctx, s.now().UTC(), limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		_, ok, err := s.ExpireTurn(ctx, id)
		if err != nil {
			s.logger.Error("failed to expire turn", "game_id", id, "error", err)
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}

// mutate runs fn as one retried compare-and-set on the game document
func (s *GameService) mutate(ctx context.Context, op, gameID string, fn redis.GameMutation) (*domain.Game, error) {
	var updated *domain.Game
	err := s.tx.Run(ctx, op, func(ctx context.Context) error {
		g, err := s.store.UpdateGame(ctx, gameID, fn)
		if err != nil {
			return err
		}
		updated = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// finish records a completed game. Archive failures are logged, not returned.
func (s *GameService) finish(ctx context.Context, g *domain.Game, reason string) {
	s.metrics.RecordGameCompleted(reason)
	s.logger.Info("game completed",
		"game_id", g.ID,
		"winner_id", g.WinnerID,
		"reason", reason,
	)
	s.recordEvent(ctx, g, g.WinnerID, domain.GameEventCompleted)
	if s.archive == nil {
		return
	}
	if err := s.archive.ArchiveGame(ctx, g); err != nil {
		s.logger.Warn("failed to archive game", "game_id", g.ID, "error", err)
	}
}

func (s *GameService) recordEvent(ctx context.Context, g *domain.Game, actorID, eventType string) {
	if s.archive == nil {
		return
	}
	event := domain.GameEvent{
		GameID:    g.ID,
		ActorID:   actorID,
		EventType: eventType,
		Version:   g.Version,
		Timestamp: g.UpdatedAt,
	}
	if err := s.archive.RecordGameEvent(ctx, event); err != nil {
		s.logger.Warn("failed to record game event", "game_id", g.ID, "error", err)
	}
}
