package catalog

import "errors"

// Typed errors returned by the catalog service.
var (
	// ErrNotFound is returned when the referenced catalog entry does not
	// exist. It also covers a machine create pointing at a missing line.
	ErrNotFound = errors.New("catalog entry not found")

	// ErrDuplicate is returned when a create or rename collides with an
	// existing entry. Name comparisons ignore case and diacritics.
	ErrDuplicate = errors.New("catalog entry already exists")

	// ErrEmptyBatch is returned when a machine batch contains no usable
	// rows after blank entries are dropped.
	ErrEmptyBatch = errors.New("no machines to create")
)
