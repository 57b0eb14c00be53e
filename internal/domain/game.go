package domain

import (
	"strings"
	"time"
)

// GameLength selects the word a player must accumulate to lose
type GameLength string

const (
	GameLengthSkate GameLength = "SKATE"
	GameLengthSK8   GameLength = "SK8"
)

// Word returns the letters spelled out by missed attempts.
func (l GameLength) Word() string {
	if l == GameLengthSK8 {
		return "SK8"
	}
	return "SKATE"
}

// ParseGameLength accepts SKATE or SK8 in any case; empty defaults to SKATE.
func ParseGameLength(s string) (GameLength, error) {
	switch GameLength(strings.ToUpper(strings.TrimSpace(s))) {
	case "", GameLengthSkate:
		return GameLengthSkate, nil
	case GameLengthSK8:
		return GameLengthSK8, nil
	default:
		return "", ErrInvalidGameLength
	}
}

// GameStatus represents where a game is in its lifecycle
type GameStatus string

const (
	GameStatusPending   GameStatus = "PENDING"
	GameStatusActive    GameStatus = "ACTIVE"
	GameStatusCompleted GameStatus = "COMPLETED"
)

// TurnType is the action expected from the player holding the turn
type TurnType string

const (
	TurnSetTrick     TurnType = "SET_TRICK"
	TurnAttemptMatch TurnType = "ATTEMPT_MATCH"
	TurnJudgeAttempt TurnType = "JUDGE_ATTEMPT"
)

// JudgeResult is the setter's verdict on an attempt
type JudgeResult string

const (
	ResultLanded JudgeResult = "landed"
	ResultMissed JudgeResult = "missed"
)

// ParseJudgeResult validates a verdict string.
func ParseJudgeResult(s string) (JudgeResult, error) {
	switch JudgeResult(strings.ToLower(strings.TrimSpace(s))) {
	case ResultLanded:
		return ResultLanded, nil
	case ResultMissed:
		return ResultMissed, nil
	default:
		return "", ErrInvalidResult
	}
}

// Letters holds each side's accumulated letters; each is a prefix of the game word
type Letters struct {
	Challenger string `json:"challenger"`
	Opponent   string `json:"opponent"`
}

// Attempt is one judged try at matching a round's trick
type Attempt struct {
	UID      string      `json:"uid"`
	VideoURL string      `json:"video_url"`
	Result   JudgeResult `json:"result"`
	JudgedAt time.Time   `json:"judged_at"`
}

// Round is one set trick and the attempts made against it
type Round struct {
	SetBy         string    `json:"set_by"`
	TrickVideoURL string    `json:"trick_video_url"`
	Attempts      []Attempt `json:"attempts"`
}

// Game is a head-to-head SKATE match
type Game struct {
	ID                     string     `json:"id"`
	ChallengerID           string     `json:"challenger_id"`
	OpponentID             string     `json:"opponent_id,omitempty"`
	GameLength             GameLength `json:"game_length"`
	Status                 GameStatus `json:"status"`
	Letters                Letters    `json:"letters"`
	CurrentTurnID          string     `json:"current_turn_id"`
	CurrentTurnType        TurnType   `json:"current_turn_type"`
	CurrentTrickVideoURL   string     `json:"current_trick_video_url,omitempty"`
	PendingAttemptVideoURL string     `json:"pending_attempt_video_url,omitempty"`
	Rounds                 []Round    `json:"rounds"`
	WinnerID               string     `json:"winner_id,omitempty"`
	ForfeitedBy            string     `json:"forfeited_by,omitempty"`
	Version                int64      `json:"version"`
	TurnDeadline           *time.Time `json:"turn_deadline,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`
}

// NewGame creates a pending game with the challenger's first trick already set.
// opponentID may be empty for an open challenge.
func NewGame(id, challengerID, opponentID, trickVideoURL string, length GameLength, now time.Time) (*Game, error) {
	if strings.TrimSpace(trickVideoURL) == "" {
		return nil, ErrMissingVideo
	}
	if challengerID == "" || challengerID == opponentID {
		return nil, ErrInvalidRequest
	}
	if length == "" {
		length = GameLengthSkate
	}
	return &Game{
		ID:                   id,
		ChallengerID:         challengerID,
		OpponentID:           opponentID,
		GameLength:           length,
		Status:               GameStatusPending,
		CurrentTurnID:        challengerID,
		CurrentTurnType:      TurnSetTrick,
		CurrentTrickVideoURL: trickVideoURL,
		Rounds: []Round{{
			SetBy:         challengerID,
			TrickVideoURL: trickVideoURL,
			Attempts:      []Attempt{},
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Word returns the game word.
func (g *Game) Word() string {
	return g.GameLength.Word()
}

// IsParticipant reports whether userID plays in this game.
func (g *Game) IsParticipant(userID string) bool {
	return userID != "" && (userID == g.ChallengerID || userID == g.OpponentID)
}

// OtherPlayer returns the participant that is not userID.
func (g *Game) OtherPlayer(userID string) string {
	if userID == g.ChallengerID {
		return g.OpponentID
	}
	return g.ChallengerID
}

// TurnExpired reports whether the current turn deadline has passed.
func (g *Game) TurnExpired(now time.Time) bool {
	return g.Status == GameStatusActive && g.TurnDeadline != nil && !now.Before(*g.TurnDeadline)
}

// Join binds the opponent and activates the game. The joiner must match the
// first trick.
func (g *Game) Join(userID string, now time.Time, turnTimeout time.Duration) error {
	if userID == g.ChallengerID {
		return ErrCannotJoinOwnGame
	}
	if g.Status != GameStatusPending {
		return ErrGameFull
	}
	if g.OpponentID != "" && g.OpponentID != userID {
		return ErrGameFull
	}

	g.OpponentID = userID
	g.Status = GameStatusActive
	g.CurrentTurnID = userID
	g.CurrentTurnType = TurnAttemptMatch
	g.touch(now, turnTimeout)
	return nil
}

// ApplyTurn runs one action by actorID. Only the player holding the turn may
// act, and only with the action the turn type calls for.
func (g *Game) ApplyTurn(actorID string, action TurnAction, now time.Time, turnTimeout time.Duration) error {
	if g.Status != GameStatusActive {
		return ErrGameNotActive
	}
	if actorID == "" || actorID != g.CurrentTurnID {
		return ErrNotYourTurn
	}
	if g.TurnExpired(now) {
		return ErrTurnExpired
	}
	if action == nil {
		return ErrInvalidAction
	}
	if err := action.validate(); err != nil {
		return err
	}

	switch a := action.(type) {
	case AttemptAction:
		if g.CurrentTurnType == TurnAttemptMatch {
			g.applyAttempt(actorID, a)
			g.touch(now, turnTimeout)
			return nil
		}
	case JudgeAction:
		if g.CurrentTurnType == TurnJudgeAttempt {
			g.applyJudge(actorID, a, now)
			g.touch(now, turnTimeout)
			return nil
		}
	case SetAction:
		if g.CurrentTurnType == TurnSetTrick {
			g.applySet(actorID, a)
			g.touch(now, turnTimeout)
			return nil
		}
	default:
		return ErrInvalidAction
	}
	return ErrActionNotAllowed
}

func (g *Game) applyAttempt(actorID string, a AttemptAction) {
	g.PendingAttemptVideoURL = a.VideoURL
	g.CurrentTurnType = TurnJudgeAttempt
	g.CurrentTurnID = g.OtherPlayer(actorID)
}

// applyJudge records the verdict. The judge is the setter and keeps the turn.
func (g *Game) applyJudge(judgeID string, a JudgeAction, now time.Time) {
	attempterID := g.OtherPlayer(judgeID)

	if len(g.Rounds) == 0 {
		g.Rounds = append(g.Rounds, Round{SetBy: judgeID, TrickVideoURL: g.CurrentTrickVideoURL})
	}
	current := &g.Rounds[len(g.Rounds)-1]
	current.Attempts = append(current.Attempts, Attempt{
		UID:      attempterID,
		VideoURL: g.PendingAttemptVideoURL,
		Result:   a.Result,
		JudgedAt: now,
	})

	g.PendingAttemptVideoURL = ""
	g.CurrentTrickVideoURL = ""
	g.CurrentTurnType = TurnSetTrick

	if a.Result != ResultMissed {
		return
	}

	word := g.Word()
	letters := g.lettersOf(attempterID)
	if len(*letters) < len(word) {
		*letters += string(word[len(*letters)])
	}
	if len(*letters) >= len(word) {
		g.complete(judgeID, now)
	}
}

func (g *Game) applySet(actorID string, a SetAction) {
	g.Rounds = append(g.Rounds, Round{
		SetBy:         actorID,
		TrickVideoURL: a.VideoURL,
		Attempts:      []Attempt{},
	})
	g.CurrentTrickVideoURL = a.VideoURL
	g.CurrentTurnType = TurnAttemptMatch
	g.CurrentTurnID = g.OtherPlayer(actorID)
}

// Forfeit ends an active game with loserID conceding.
func (g *Game) Forfeit(loserID string, now time.Time) error {
	if g.Status != GameStatusActive {
		return ErrGameNotActive
	}
	if !g.IsParticipant(loserID) {
		return ErrNotParticipant
	}
	g.ForfeitedBy = loserID
	g.complete(g.OtherPlayer(loserID), now)
	return nil
}

// ExpireTurn forfeits the game on behalf of the player whose turn lapsed.
// It reports false when the turn is still live.
func (g *Game) ExpireTurn(now time.Time) bool {
	if !g.TurnExpired(now) {
		return false
	}
	return g.Forfeit(g.CurrentTurnID, now) == nil
}

// LoserID returns the losing player of a completed game.
func (g *Game) LoserID() string {
	if g.Status != GameStatusCompleted || g.WinnerID == "" {
		return ""
	}
	return g.OtherPlayer(g.WinnerID)
}

func (g *Game) complete(winnerID string, now time.Time) {
	g.Status = GameStatusCompleted
	g.WinnerID = winnerID
	g.TurnDeadline = nil
	g.CompletedAt = &now
	g.UpdatedAt = now
}

func (g *Game) lettersOf(userID string) *string {
	if userID == g.ChallengerID {
		return &g.Letters.Challenger
	}
	return &g.Letters.Opponent
}

// touch stamps the update and re-arms the turn deadline while active.
func (g *Game) touch(now time.Time, turnTimeout time.Duration) {
	g.UpdatedAt = now
	if g.Status != GameStatusActive || turnTimeout <= 0 {
		g.TurnDeadline = nil
		return
	}
	deadline := now.Add(turnTimeout)
	g.TurnDeadline = &deadline
}
