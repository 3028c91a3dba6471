package incidents

import "errors"

// Typed errors returned by the incident service. Handlers map them to
// HTTP status codes; the service never writes responses.
var (
	// ErrNotFound is returned when no live incident has the given id.
	// Resolved incidents leave the live set, so acting on one also
	// yields ErrNotFound.
	ErrNotFound = errors.New("incident not found")

	// ErrDuplicateOpen is returned when the same team already has an
	// unresolved incident for the same line and machine.
	ErrDuplicateOpen = errors.New("an open incident already exists for this machine")

	// ErrTeamMismatch is returned when the acting technician belongs to
	// a different team than the incident.
	ErrTeamMismatch = errors.New("no access to this incident")

	// ErrInvalidStatus is returned when a status change requests a value
	// outside the waiting sub-statuses.
	ErrInvalidStatus = errors.New("invalid status")
)
