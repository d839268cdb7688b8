package domain

import "errors"

// Sentinel error kinds. Callers classify failures with errors.Is and
// map them onto their transport's status codes.
var (
	// ErrValidation covers malformed or out-of-rule input.
	ErrValidation = errors.New("invalid request")
	// ErrNotYourTurn means the actor is not the player whose turn it is.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrWrongStatus means the operation does not apply to the game's
	// current lifecycle stage.
	ErrWrongStatus = errors.New("wrong game status")
	// ErrInsufficientFunds means the actor cannot cover the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNotFound means the game or player row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict means a conditional write lost the race; the
	// caller re-reads and retries or gives up.
	ErrVersionConflict = errors.New("version conflict")
)
