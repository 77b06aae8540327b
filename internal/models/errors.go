// internal/models/errors.go
package models

import "errors"

// RejectError is a recoverable rejection of a single player action. The
// offending client receives an action_rejected event carrying the kind; the
// shared room state is left untouched.
type RejectError struct {
	Kind string
}

func (e *RejectError) Error() string { return e.Kind }

// The closed set of rejection kinds.
var (
	ErrRoomNotFound    = &RejectError{Kind: "room_not_found"}
	ErrRoomFull        = &RejectError{Kind: "room_full"}
	ErrUnknownIdentity = &RejectError{Kind: "unknown_identity"}
	ErrNotYourTurn     = &RejectError{Kind: "not_your_turn"}
	ErrIllegalCard     = &RejectError{Kind: "illegal_card"}
	ErrAlreadyPlayed   = &RejectError{Kind: "already_played"}
	ErrStateDesync     = &RejectError{Kind: "state_desync"}
	ErrCapacityInvalid = &RejectError{Kind: "capacity_invalid"}
)

// RejectKind extracts the rejection kind from an error chain, if any.
func RejectKind(err error) (string, bool) {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return "", false
}
