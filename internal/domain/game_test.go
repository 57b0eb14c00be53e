package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skatehubba/skate-core/internal/domain"
)

const turnTimeout = 24 * time.Hour

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func activeGame(t *testing.T, length domain.GameLength) *domain.Game {
	t.Helper()
	g, err := domain.NewGame("g1", "alice", "", "kickflip.mp4", length, t0)
	require.NoError(t, err)
	require.NoError(t, g.Join("bob", t0, turnTimeout))
	return g
}

func TestNewGame(t *testing.T) {
	g, err := domain.NewGame("g1", "alice", "", "kickflip.mp4", "", t0)
	require.NoError(t, err)

	assert.Equal(t, domain.GameStatusPending, g.Status)
	assert.Equal(t, domain.GameLengthSkate, g.GameLength)
	assert.Equal(t, domain.TurnSetTrick, g.CurrentTurnType)
	assert.Equal(t, "alice", g.CurrentTurnID)
	require.Len(t, g.Rounds, 1)
	assert.Equal(t, "alice", g.Rounds[0].SetBy)
	assert.Equal(t, "kickflip.mp4", g.Rounds[0].TrickVideoURL)
	assert.Nil(t, g.TurnDeadline)

	_, err = domain.NewGame("g2", "alice", "", " ", "", t0)
	assert.ErrorIs(t, err, domain.ErrMissingVideo)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = domain.NewGame("g3", "alice", "alice", "kickflip.mp4", "", t0)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestJoin(t *testing.T) {
	t.Run("open game", func(t *testing.T) {
		g, err := domain.NewGame("g1", "alice", "", "kickflip.mp4", "", t0)
		require.NoError(t, err)

		require.NoError(t, g.Join("bob", t0, turnTimeout))
		assert.Equal(t, domain.GameStatusActive, g.Status)
		assert.Equal(t, "bob", g.OpponentID)
		assert.Equal(t, "bob", g.CurrentTurnID)
		assert.Equal(t, domain.TurnAttemptMatch, g.CurrentTurnType)
		require.NotNil(t, g.TurnDeadline)
		assert.Equal(t, t0.Add(turnTimeout), *g.TurnDeadline)

		assert.ErrorIs(t, g.Join("carol", t0, turnTimeout), domain.ErrGameFull)
	})

	t.Run("challenger cannot join", func(t *testing.T) {
		g, err := domain.NewGame("g1", "alice", "", "kickflip.mp4", "", t0)
		require.NoError(t, err)
		err = g.Join("alice", t0, turnTimeout)
		assert.ErrorIs(t, err, domain.ErrCannotJoinOwnGame)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("invited opponent only", func(t *testing.T) {
		g, err := domain.NewGame("g1", "alice", "bob", "kickflip.mp4", "", t0)
		require.NoError(t, err)
		assert.ErrorIs(t, g.Join("carol", t0, turnTimeout), domain.ErrGameFull)
		assert.NoError(t, g.Join("bob", t0, turnTimeout))
	})
}

func TestApplyTurn_LandedKeepsLetters(t *testing.T) {
	g := activeGame(t, domain.GameLengthSkate)

	require.NoError(t, g.ApplyTurn("bob", domain.AttemptAction{VideoURL: "bob-try.mp4"}, t0, turnTimeout))
	assert.Equal(t, domain.TurnJudgeAttempt, g.CurrentTurnType)
	assert.Equal(t, "alice", g.CurrentTurnID)
	assert.Equal(t, "bob-try.mp4", g.PendingAttemptVideoURL)

	require.NoError(t, g.ApplyTurn("alice", domain.JudgeAction{Result: domain.ResultLanded}, t0, turnTimeout))
	assert.Equal(t, domain.TurnSetTrick, g.CurrentTurnType)
	assert.Equal(t, "alice", g.CurrentTurnID)
	assert.Empty(t, g.Letters.Challenger)
	assert.Empty(t, g.Letters.Opponent)
	assert.Empty(t, g.PendingAttemptVideoURL)
	assert.Empty(t, g.CurrentTrickVideoURL)

	require.Len(t, g.Rounds[0].Attempts, 1)
	attempt := g.Rounds[0].Attempts[0]
	assert.Equal(t, "bob", attempt.UID)
	assert.Equal(t, "bob-try.mp4", attempt.VideoURL)
	assert.Equal(t, domain.ResultLanded, attempt.Result)
	assert.Equal(t, t0, attempt.JudgedAt)
}

func TestApplyTurn_MissedAddsLetter(t *testing.T) {
	g := activeGame(t, domain.GameLengthSkate)

	require.NoError(t, g.ApplyTurn("bob", domain.AttemptAction{VideoURL: "bob-try.mp4"}, t0, turnTimeout))
	require.NoError(t, g.ApplyTurn("alice", domain.JudgeAction{Result: domain.ResultMissed}, t0, turnTimeout))

	assert.Equal(t, "S", g.Letters.Opponent)
	assert.Empty(t, g.Letters.Challenger)
	assert.Equal(t, domain.TurnSetTrick, g.CurrentTurnType)
	assert.Equal(t, "alice", g.CurrentTurnID)
	assert.Equal(t, domain.GameStatusActive, g.Status)
}

func TestApplyTurn_SetPassesTurn(t *testing.T) {
	g := activeGame(t, domain.GameLengthSkate)
	require.NoError(t, g.ApplyTurn("bob", domain.AttemptAction{VideoURL: "a.mp4"}, t0, turnTimeout))
	require.NoError(t, g.ApplyTurn("alice", domain.JudgeAction{Result: domain.ResultLanded}, t0, turnTimeout))

	later := t0.Add(time.Hour)
	require.NoError(t, g.ApplyTurn("alice", domain.SetAction{VideoURL: "heelflip.mp4"}, later, turnTimeout))
	assert.Equal(t, domain.TurnAttemptMatch, g.CurrentTurnType)
	assert.Equal(t, "bob", g.CurrentTurnID)
	assert.Equal(t, "heelflip.mp4", g.CurrentTrickVideoURL)
	require.Len(t, g.Rounds, 2)
	assert.Equal(t, "alice", g.Rounds[1].SetBy)
	assert.Empty(t, g.Rounds[1].Attempts)
	assert.Equal(t, later.Add(turnTimeout), *g.TurnDeadline)
}

func playMiss(t *testing.T, g *domain.Game, setter, attempter string) {
	t.Helper()
	require.NoError(t, g.ApplyTurn(attempter, domain.AttemptAction{VideoURL: "try.mp4"}, t0, turnTimeout))
	require.NoError(t, g.ApplyTurn(setter, domain.JudgeAction{Result: domain.ResultMissed}, t0, turnTimeout))
	if g.Status == domain.GameStatusActive {
		require.NoError(t, g.ApplyTurn(setter, domain.SetAction{VideoURL: "trick.mp4"}, t0, turnTimeout))
	}
}

func TestApplyTurn_FullWordCompletesGame(t *testing.T) {
	g := activeGame(t, domain.GameLengthSkate)

	for i := 0; i < 4; i++ {
		playMiss(t, g, "alice", "bob")
		assert.Equal(t, domain.GameStatusActive, g.Status)
		assert.Less(t, len(g.Letters.Opponent), len(g.Word()))
	}
	assert.Equal(t, "SKAT", g.Letters.Opponent)

	playMiss(t, g, "alice", "bob")
	assert.Equal(t, "SKATE", g.Letters.Opponent)
	assert.Equal(t, domain.GameStatusCompleted, g.Status)
	assert.Equal(t, "alice", g.WinnerID)
	assert.Equal(t, "bob", g.LoserID())
	assert.Nil(t, g.TurnDeadline)
	assert.NotNil(t, g.CompletedAt)

	err := g.ApplyTurn("alice", domain.SetAction{VideoURL: "x.mp4"}, t0, turnTimeout)
	assert.ErrorIs(t, err, domain.ErrGameNotActive)
}

func TestApplyTurn_SK8EndsAfterThreeLetters(t *testing.T) {
	g := activeGame(t, domain.GameLengthSK8)

	playMiss(t, g, "alice", "bob")
	playMiss(t, g, "alice", "bob")
	assert.Equal(t, "SK", g.Letters.Opponent)
	playMiss(t, g, "alice", "bob")

	assert.Equal(t, "SK8", g.Letters.Opponent)
	assert.Equal(t, domain.GameStatusCompleted, g.Status)
	assert.Equal(t, "alice", g.WinnerID)
}

func TestApplyTurn_Authorization(t *testing.T) {
	g := activeGame(t, domain.GameLengthSkate)

	err := g.ApplyTurn("alice", domain.AttemptAction{VideoURL: "a.mp4"}, t0, turnTimeout)
	assert.ErrorIs(t, err, domain.ErrNotYourTurn)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	err = g.ApplyTurn("mallory", domain.AttemptAction{VideoURL: "a.mp4"}, t0, turnTimeout)
	assert.ErrorIs(t, err, domain.ErrNotYourTurn)

	// bob holds the turn but must attempt, not judge or set
	err = g.ApplyTurn("bob", domain.JudgeAction{Result: domain.ResultLanded}, t0, turnTimeout)
	assert.ErrorIs(t, err, domain.ErrActionNotAllowed)
	err = g.ApplyTurn("bob", domain.SetAction{VideoURL: "s.mp4"}, t0, turnTimeout)
	assert.ErrorIs(t, err, domain.ErrActionNotAllowed)

	err = g.ApplyTurn("bob", domain.AttemptAction{}, t0, turnTimeout)
	assert.ErrorIs(t, err, domain.ErrMissingVideo)

	assert.Equal(t, domain.TurnAttemptMatch, g.CurrentTurnType)
	assert.Equal(t, "bob", g.CurrentTurnID)
}

func TestApplyTurn_PendingGameRejectsTurns(t *testing.T) {
	g, err := domain.NewGame("g1", "alice", "", "kickflip.mp4", "", t0)
	require.NoError(t, err)

	err = g.ApplyTurn("alice", domain.SetAction{VideoURL: "s.mp4"}, t0, turnTimeout)
	assert.ErrorIs(t, err, domain.ErrGameNotActive)
}

func TestTurnExpiry(t *testing.T) {
	g := activeGame(t, domain.GameLengthSkate)

	assert.False(t, g.ExpireTurn(t0.Add(turnTimeout-time.Second)))
	err := g.ApplyTurn("bob", domain.AttemptAction{VideoURL: "a.mp4"}, t0.Add(turnTimeout), turnTimeout)
	assert.ErrorIs(t, err, domain.ErrTurnExpired)

	for _, outsider := range []string{"alice", "mallory"} {
		err = g.ApplyTurn(outsider, domain.AttemptAction{VideoURL: "a.mp4"}, t0.Add(turnTimeout), turnTimeout)
		assert.ErrorIs(t, err, domain.ErrNotYourTurn, outsider)
	}

	assert.True(t, g.ExpireTurn(t0.Add(turnTimeout)))
	assert.Equal(t, domain.GameStatusCompleted, g.Status)
	assert.Equal(t, "bob", g.ForfeitedBy)
	assert.Equal(t, "alice", g.WinnerID)
	assert.False(t, g.ExpireTurn(t0.Add(2*turnTimeout)))
}

func TestForfeit(t *testing.T) {
	g := activeGame(t, domain.GameLengthSkate)

	assert.ErrorIs(t, g.Forfeit("mallory", t0), domain.ErrNotParticipant)
	require.NoError(t, g.Forfeit("alice", t0))
	assert.Equal(t, "bob", g.WinnerID)
	assert.Equal(t, "alice", g.ForfeitedBy)
	assert.ErrorIs(t, g.Forfeit("bob", t0), domain.ErrGameNotActive)
}

func TestTurnRequest_ToAction(t *testing.T) {
	tests := []struct {
		name    string
		req     domain.TurnRequest
		want    domain.TurnAction
		wantErr error
	}{
		{"attempt", domain.TurnRequest{Action: "attempt", VideoURL: "a.mp4"}, domain.AttemptAction{VideoURL: "a.mp4"}, nil},
		{"set", domain.TurnRequest{Action: "SET", VideoURL: "s.mp4"}, domain.SetAction{VideoURL: "s.mp4"}, nil},
		{"judge", domain.TurnRequest{Action: "judge", Result: "missed"}, domain.JudgeAction{Result: domain.ResultMissed}, nil},
		{"judge bad result", domain.TurnRequest{Action: "judge", Result: "bailed"}, nil, domain.ErrInvalidResult},
		{"unknown action", domain.TurnRequest{Action: "resign"}, nil, domain.ErrInvalidAction},
		{"attempt without video", domain.TurnRequest{Action: "attempt"}, nil, domain.ErrMissingVideo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.ToAction()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
