package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error the hub reports to a client wraps exactly one of them.
var (
	ErrValidation    = errors.New("validation error")
	ErrStateConflict = errors.New("state conflict")
	ErrNotAuthorized = errors.New("not authorized")
	ErrNotFound      = errors.New("not found")
)

var (
	ErrInvalidUserID   = fmt.Errorf("%w: invalid user id", ErrValidation)
	ErrInvalidRoomID   = fmt.Errorf("%w: invalid room id", ErrValidation)
	ErrUnknownRoomKind = fmt.Errorf("%w: unknown room kind", ErrValidation)
	ErrBadEnvelope     = fmt.Errorf("%w: malformed envelope", ErrValidation)
	ErrUnknownType     = fmt.Errorf("%w: unknown message type", ErrValidation)
	ErrSameContestant  = fmt.Errorf("%w: contestants must differ", ErrValidation)
	ErrBadRounds       = fmt.Errorf("%w: invalid round settings", ErrValidation)

	ErrRoomFull            = fmt.Errorf("%w: room full", ErrStateConflict)
	ErrRoomNotJoinable     = fmt.Errorf("%w: room not joinable", ErrStateConflict)
	ErrNotInRoom           = fmt.Errorf("%w: not in a room", ErrStateConflict)
	ErrBattleNotVoting     = fmt.Errorf("%w: battle not voting", ErrStateConflict)
	ErrInvalidTransition   = fmt.Errorf("%w: invalid battle transition", ErrStateConflict)
	ErrBattleInProgress    = fmt.Errorf("%w: battle already in progress", ErrStateConflict)
	ErrInvalidContestant   = fmt.Errorf("%w: invalid contestant", ErrStateConflict)
	ErrContestantNotInRoom = fmt.Errorf("%w: contestant not in room", ErrStateConflict)
	ErrAlreadyRecording    = fmt.Errorf("%w: already recording", ErrStateConflict)
	ErrNotRecording        = fmt.Errorf("%w: not recording", ErrStateConflict)
	ErrDuplicateIdentity   = fmt.Errorf("%w: identity connected elsewhere", ErrStateConflict)
	ErrRateLimited         = fmt.Errorf("%w: rate limited", ErrStateConflict)

	ErrNotOwner = fmt.Errorf("%w: room owner only", ErrNotAuthorized)

	ErrRoomNotFound    = fmt.Errorf("%w: room", ErrNotFound)
	ErrBattleNotFound  = fmt.Errorf("%w: battle", ErrNotFound)
	ErrSessionNotFound = fmt.Errorf("%w: session", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("%w: user", ErrNotFound)
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrRoomFull, "room_full"},
	{ErrRoomNotJoinable, "room_not_joinable"},
	{ErrNotInRoom, "not_in_room"},
	{ErrBattleNotVoting, "battle_not_voting"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrBattleInProgress, "battle_in_progress"},
	{ErrInvalidContestant, "invalid_contestant"},
	{ErrContestantNotInRoom, "contestant_not_in_room"},
	{ErrAlreadyRecording, "already_recording"},
	{ErrNotRecording, "not_recording"},
	{ErrDuplicateIdentity, "duplicate_identity"},
	{ErrRateLimited, "rate_limited"},
	{ErrNotOwner, "not_owner"},
	{ErrRoomNotFound, "room_not_found"},
	{ErrBattleNotFound, "battle_not_found"},
	{ErrSessionNotFound, "session_not_found"},
	{ErrUserNotFound, "user_not_found"},
	{ErrValidation, "validation"},
	{ErrStateConflict, "state_conflict"},
	{ErrNotAuthorized, "not_authorized"},
	{ErrNotFound, "not_found"},
}

// Code maps an error to its stable wire code. Unknown errors map to "internal".
func Code(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal"
}
