package identity

import "errors"

// Typed errors returned by the identity service.
var (
	// ErrInvalidCredentials covers unknown numbers, inactive technicians
	// and wrong PINs alike, so responses never reveal which one failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrWrongTeam is returned when the PIN checks out but the technician
	// belongs to a different team than the login screen asked for.
	ErrWrongTeam = errors.New("technician belongs to another team")

	// ErrRateLimited is returned when a number exceeds its login budget.
	ErrRateLimited = errors.New("too many login attempts")

	// ErrInvalidSession is returned for unknown or expired tokens.
	ErrInvalidSession = errors.New("invalid or expired session")
)
