package domain

import "errors"

// Error kinds. Every domain error unwraps to exactly one of these.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrTransient    = errors.New("transient failure")
)

// kindError is a named error belonging to one of the kinds above.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Domain errors
var (
	ErrGameNotFound       = newError(ErrNotFound, "game not found")
	ErrSubmissionNotFound = newError(ErrNotFound, "submission not found")
	ErrPlayerNotFound     = newError(ErrNotFound, "player not found")

	ErrNotYourTurn      = newError(ErrUnauthorized, "it is not your turn")
	ErrActionNotAllowed = newError(ErrUnauthorized, "action does not match the current turn")
	ErrNotParticipant   = newError(ErrUnauthorized, "caller is not a participant of this game")
	ErrSelfJudging      = newError(ErrUnauthorized, "judges cannot vote on their own submission")
	ErrNotAJudge        = newError(ErrUnauthorized, "caller does not hold the judge role")
	ErrNotAdmin         = newError(ErrUnauthorized, "caller does not hold the admin role")
	ErrMissingIdentity  = newError(ErrUnauthorized, "missing caller identity")

	ErrAlreadyVoted      = newError(ErrConflict, "judge already voted on this submission")
	ErrAlreadyResolved   = newError(ErrConflict, "submission already resolved")
	ErrCooldownActive    = newError(ErrConflict, "user is on cooldown")
	ErrGameFull          = newError(ErrConflict, "game is full")
	ErrCannotJoinOwnGame = newError(ErrConflict, "cannot join your own game")
	ErrGameNotActive     = newError(ErrConflict, "game is not active")
	ErrTurnExpired       = newError(ErrConflict, "turn deadline has passed")
	ErrHandleTaken       = newError(ErrConflict, "handle is already taken")

	ErrInvalidAction     = newError(ErrValidation, "invalid turn action")
	ErrInvalidResult     = newError(ErrValidation, "invalid judge result")
	ErrInvalidVote       = newError(ErrValidation, "invalid vote")
	ErrInvalidGameLength = newError(ErrValidation, "invalid game length")
	ErrMissingVideo      = newError(ErrValidation, "video url is required")
	ErrInvalidDuration   = newError(ErrValidation, "invalid recording duration")
	ErrInvalidRequest    = newError(ErrValidation, "invalid request")
	ErrInvalidHandle     = newError(ErrValidation, "handle must be 3-32 letters, digits, '_' or '-'")

	ErrInternalError = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTerminal reports whether err must be surfaced to the caller without retrying.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrValidation)
}
