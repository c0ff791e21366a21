package service

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error unwraps to one of these, so callers can switch
// on the kind with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidState  = errors.New("invalid state")
	ErrConflict      = errors.New("conflict")
	ErrValidation    = errors.New("validation failed")
	ErrAuthorization = errors.New("not authorized")
)

type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrGameNotFound         = newError(ErrNotFound, "game_not_found", "game not found")
	ErrPlayerNotFound       = newError(ErrNotFound, "player_not_found", "player not found")
	ErrUserNotFound         = newError(ErrNotFound, "user_not_found", "user not found")
	ErrAnnouncementNotFound = newError(ErrNotFound, "announcement_not_found", "announcement not found")
	ErrEvidenceNotFound     = newError(ErrNotFound, "evidence_not_found", "evidence not found")

	ErrAlreadyPending      = newError(ErrInvalidState, "already_pending", "target already has a pending elimination claim")
	ErrNotYourTarget       = newError(ErrInvalidState, "not_your_target", "victim is not your current target")
	ErrGameNotActive       = newError(ErrInvalidState, "game_not_active", "game is not active")
	ErrLastPlayer          = newError(ErrInvalidState, "last_player", "only one player remains")
	ErrNoPendingClaim      = newError(ErrInvalidState, "no_pending_claim", "player has no pending elimination claim")
	ErrKillerNotFound      = newError(ErrInvalidState, "killer_not_found", "no living player targets this victim")
	ErrInsufficientPlayers = newError(ErrInvalidState, "insufficient_players", "at least two living players are required")
	ErrAlreadyStarted      = newError(ErrInvalidState, "already_started", "game has already started")
	ErrAlreadyJoined       = newError(ErrInvalidState, "already_joined", "user already joined this game")
	ErrAlreadyDisputed     = newError(ErrInvalidState, "already_disputed", "claim has already been disputed")
	ErrKillerEliminated    = newError(ErrInvalidState, "killer_eliminated", "eliminated players cannot submit claims")
	ErrRingCorrupted       = newError(ErrInvalidState, "ring_corrupted", "target ring is inconsistent")
	ErrCannotRemoveAdmin   = newError(ErrInvalidState, "cannot_remove_admin", "the game admin cannot be removed")

	ErrNotAdmin       = newError(ErrAuthorization, "not_admin", "only the game admin can do this")
	ErrNotPlayerOwner = newError(ErrAuthorization, "not_player_owner", "you can only act for your own player")
	ErrNotParticipant = newError(ErrAuthorization, "not_participant", "you are not a player in this game")

	ErrEmptyContent = newError(ErrValidation, "empty_content", "content must not be empty")

	errTxConflict = newError(ErrConflict, "conflict", "operation conflicted with concurrent updates, try again")
)

func validationError(format string, args ...any) *Error {
	return newError(ErrValidation, "validation", fmt.Sprintf(format, args...))
}

// CodeOf returns the machine readable code of a domain error, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
