package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skatehubba/skate-core/internal/domain"
)

func startGame(t *testing.T, env *testEnv, length string) *domain.Game {
	t.Helper()
	ctx := context.Background()
	g, err := env.games.CreateGame(ctx, "alice", domain.CreateGameRequest{
		TrickVideoURL:  "kickflip.mp4",
		OpponentHandle: "bobby",
		GameLength:     length,
	})
	require.NoError(t, err)
	g, err = env.games.JoinGame(ctx, g.ID, "bob")
	require.NoError(t, err)
	return g
}

func TestGameService_CreateGame(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	g, err := env.games.CreateGame(ctx, "alice", domain.CreateGameRequest{
		TrickVideoURL:  "kickflip.mp4",
		OpponentHandle: "bobby",
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", g.OpponentID)
	assert.Equal(t, domain.GameStatusPending, g.Status)
	assert.Equal(t, int64(1), g.Version)

	stored, err := env.games.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.ID, stored.ID)

	_, err = env.games.CreateGame(ctx, "alice", domain.CreateGameRequest{TrickVideoURL: "x.mp4", OpponentHandle: "ghost"})
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)

	_, err = env.games.CreateGame(ctx, "alice", domain.CreateGameRequest{TrickVideoURL: "x.mp4", OpponentHandle: "alicia"})
	assert.ErrorIs(t, err, domain.ErrCannotJoinOwnGame)

	_, err = env.games.CreateGame(ctx, "alice", domain.CreateGameRequest{})
	assert.ErrorIs(t, err, domain.ErrMissingVideo)

	_, err = env.games.CreateGame(ctx, "alice", domain.CreateGameRequest{TrickVideoURL: "x.mp4", GameLength: "HORSE"})
	assert.ErrorIs(t, err, domain.ErrInvalidGameLength)
}

func TestGameService_JoinErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.games.JoinGame(ctx, "missing", "bob")
	assert.ErrorIs(t, err, domain.ErrGameNotFound)

	g, err := env.games.CreateGame(ctx, "alice", domain.CreateGameRequest{TrickVideoURL: "kickflip.mp4"})
	require.NoError(t, err)

	_, err = env.games.JoinGame(ctx, g.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrCannotJoinOwnGame)

	joined, err := env.games.JoinGame(ctx, g.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(2), joined.Version)

	_, err = env.games.JoinGame(ctx, g.ID, "dave")
	assert.ErrorIs(t, err, domain.ErrGameFull)
}

func TestGameService_PlayToCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := startGame(t, env, "SK8")

	for i := 0; i < 3; i++ {
		var err error
		g, err = env.games.SubmitTurn(ctx, g.ID, "bob", domain.AttemptAction{VideoURL: "try.mp4"})
		require.NoError(t, err)
		g, err = env.games.SubmitTurn(ctx, g.ID, "alice", domain.JudgeAction{Result: domain.ResultMissed})
		require.NoError(t, err)
		if g.Status == domain.GameStatusActive {
			g, err = env.games.SubmitTurn(ctx, g.ID, "alice", domain.SetAction{VideoURL: "trick.mp4"})
			require.NoError(t, err)
		}
	}

	assert.Equal(t, domain.GameStatusCompleted, g.Status)
	assert.Equal(t, "alice", g.WinnerID)
	assert.Equal(t, "SK8", g.Letters.Opponent)

	stats, err := env.leaderboard.PlayerStats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Wins)

	top, err := env.leaderboard.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "alice", top[0].PlayerID)
	assert.Equal(t, "alicia", top[0].Handle)
	assert.Equal(t, int64(1), top[1].Losses)

	require.Len(t, env.archive.games, 1)
	assert.Equal(t, g.ID, env.archive.games[0].ID)
	assert.Contains(t, env.archive.eventTypes(), domain.GameEventCompleted)

	_, err = env.games.SubmitTurn(ctx, g.ID, "alice", domain.SetAction{VideoURL: "x.mp4"})
	assert.ErrorIs(t, err, domain.ErrGameNotActive)
}

func TestGameService_SubmitTurnRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := startGame(t, env, "")

	_, err := env.games.SubmitTurn(ctx, g.ID, "alice", domain.AttemptAction{VideoURL: "a.mp4"})
	assert.ErrorIs(t, err, domain.ErrNotYourTurn)

	_, err = env.games.SubmitTurn(ctx, g.ID, "bob", domain.SetAction{VideoURL: "a.mp4"})
	assert.ErrorIs(t, err, domain.ErrActionNotAllowed)

	_, err = env.games.SubmitTurn(ctx, "missing", "bob", domain.AttemptAction{VideoURL: "a.mp4"})
	assert.ErrorIs(t, err, domain.ErrGameNotFound)

	stored, err := env.games.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.Version, stored.Version)
}

func TestGameService_ConcurrentTurnsCommitOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := startGame(t, env, "")

	const n = 5
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := env.games.SubmitTurn(ctx, g.ID, "bob", domain.AttemptAction{VideoURL: "try.mp4"})
			errs <- err
		}()
	}

	succeeded := 0
	for i := 0; i < n; i++ {
		err := <-errs
		if err == nil {
			succeeded++
			continue
		}
		// losers re-read the game and find it is no longer their turn
		assert.ErrorIs(t, err, domain.ErrNotYourTurn)
	}
	assert.Equal(t, 1, succeeded)

	stored, err := env.games.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.Version+1, stored.Version)
	assert.Equal(t, domain.TurnJudgeAttempt, stored.CurrentTurnType)
}

func TestGameService_ExpireDue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := startGame(t, env, "")

	n, err := env.games.ExpireDue(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, expired, err := env.games.ExpireTurn(ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, expired)

	env.clock.Advance(env.cfg.Game.TurnTimeout + time.Second)

	_, err = env.games.SubmitTurn(ctx, g.ID, "bob", domain.AttemptAction{VideoURL: "late.mp4"})
	assert.ErrorIs(t, err, domain.ErrTurnExpired)

	n, err = env.games.ExpireDue(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := env.games.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GameStatusCompleted, stored.Status)
	assert.Equal(t, "bob", stored.ForfeitedBy)
	assert.Equal(t, "alice", stored.WinnerID)

	n, err = env.games.ExpireDue(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGameService_ForfeitArchiveFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	g := startGame(t, env, "")
	env.archive.failWith = errors.New("postgres down")

	_, err := env.games.Forfeit(ctx, g.ID, "carol")
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	g, err = env.games.Forfeit(ctx, g.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "bob", g.WinnerID)

	stats, err := env.leaderboard.PlayerStats(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Wins)
}
