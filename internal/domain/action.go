package domain

import "strings"

// ActionKind names a turn action on the wire
type ActionKind string

const (
	ActionAttempt ActionKind = "attempt"
	ActionJudge   ActionKind = "judge"
	ActionSet     ActionKind = "set"
)

// TurnAction is the closed set of moves a player can make. The unexported
// method keeps implementations inside this package.
type TurnAction interface {
	Kind() ActionKind
	validate() error
}

// AttemptAction submits the attempter's try at the current trick.
type AttemptAction struct {
	VideoURL string
}

// JudgeAction is the setter's verdict on the pending attempt.
type JudgeAction struct {
	Result JudgeResult
}

// SetAction records a new trick for the opponent to match.
type SetAction struct {
	VideoURL string
}

func (AttemptAction) Kind() ActionKind { return ActionAttempt }
func (JudgeAction) Kind() ActionKind   { return ActionJudge }
func (SetAction) Kind() ActionKind     { return ActionSet }

func (a AttemptAction) validate() error {
	if strings.TrimSpace(a.VideoURL) == "" {
		return ErrMissingVideo
	}
	return nil
}

func (a JudgeAction) validate() error {
	if a.Result != ResultLanded && a.Result != ResultMissed {
		return ErrInvalidResult
	}
	return nil
}

func (a SetAction) validate() error {
	if strings.TrimSpace(a.VideoURL) == "" {
		return ErrMissingVideo
	}
	return nil
}

// TurnRequest represents a request to submit a turn
type TurnRequest struct {
	Action   string `json:"action"`
	VideoURL string `json:"video_url,omitempty"`
	Result   string `json:"result,omitempty"`
}

// ToAction converts the wire request into a typed action.
func (r *TurnRequest) ToAction() (TurnAction, error) {
	var action TurnAction
	switch ActionKind(strings.ToLower(strings.TrimSpace(r.Action))) {
	case ActionAttempt:
		action = AttemptAction{VideoURL: r.VideoURL}
	case ActionSet:
		action = SetAction{VideoURL: r.VideoURL}
	case ActionJudge:
		result, err := ParseJudgeResult(r.Result)
		if err != nil {
			return nil, err
		}
		action = JudgeAction{Result: result}
	default:
		return nil, ErrInvalidAction
	}
	if err := action.validate(); err != nil {
		return nil, err
	}
	return action, nil
}

// CreateGameRequest represents a request to start a new game
type CreateGameRequest struct {
	TrickVideoURL  string `json:"trick_video_url"`
	OpponentHandle string `json:"opponent_handle,omitempty"`
	GameLength     string `json:"game_length,omitempty"`
}
