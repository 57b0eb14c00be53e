package domain

import (
	"regexp"
	"strings"
	"time"
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`)

// Player represents a registered skater known to the directory
type Player struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegisterPlayerRequest claims a handle for the calling user
type RegisterPlayerRequest struct {
	Handle    string `json:"handle"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// NewPlayer validates a registration for userID.
func NewPlayer(userID string, req RegisterPlayerRequest, now time.Time) (*Player, error) {
	if userID == "" {
		return nil, ErrMissingIdentity
	}
	handle := strings.TrimSpace(req.Handle)
	if !handlePattern.MatchString(handle) {
		return nil, ErrInvalidHandle
	}
	return &Player{
		ID:        userID,
		Handle:    handle,
		AvatarURL: strings.TrimSpace(req.AvatarURL),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// PlayerStats is a player's head-to-head record
type PlayerStats struct {
	PlayerID string `json:"player_id"`
	Wins     int64  `json:"wins"`
	Losses   int64  `json:"losses"`
}

// StatsEntry represents a single row of the wins leaderboard
type StatsEntry struct {
	Rank     int64  `json:"rank"`
	PlayerID string `json:"player_id"`
	Wins     int64  `json:"wins"`
	Losses   int64  `json:"losses"`
	Handle   string `json:"handle,omitempty"`
}

// GameEvent is an audit record of a committed game transition
type GameEvent struct {
	GameID    string    `json:"game_id"`
	ActorID   string    `json:"actor_id"`
	EventType string    `json:"event_type"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// Game event types
const (
	GameEventCreated   = "created"
	GameEventJoined    = "joined"
	GameEventAttempt   = "attempt"
	GameEventJudge     = "judge"
	GameEventSet       = "set"
	GameEventForfeit   = "forfeit"
	GameEventExpired   = "expired"
	GameEventCompleted = "completed"
)
