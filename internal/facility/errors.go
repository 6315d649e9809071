package facility

import "errors"

// Validation errors for the facility model.
var (
	// ErrInvalidClockTime is returned when an "HH:MM" value cannot be parsed.
	ErrInvalidClockTime = errors.New("facility: invalid clock time")

	// ErrInvalidSettings is returned when settings fail validation.
	ErrInvalidSettings = errors.New("facility: invalid settings")

	// ErrInvalidCatalog is returned when a room/appliance catalog is inconsistent.
	ErrInvalidCatalog = errors.New("facility: invalid catalog")
)
