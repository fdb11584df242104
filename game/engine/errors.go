package engine

import "errors"

var (
	// ErrSelectActionFirst is the only user-facing error: a cell was activated
	// before an action kind was chosen.
	ErrSelectActionFirst = errors.New("select move or trap first")

	ErrInvalidPosition = errors.New("position is outside the board")
	ErrInvalidAction   = errors.New("unknown action kind")
	ErrInvalidState    = errors.New("invalid game state")
)

// IsUserError reports whether err should be shown to the player rather than
// treated as a caller mistake.
func IsUserError(err error) bool {
	return errors.Is(err, ErrSelectActionFirst)
}
