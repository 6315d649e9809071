package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, automation.ErrRoomNotFound) {
//	    // handle not found case
//	}
var (
	// ErrRoomNotFound is returned when a room ID does not exist.
	ErrRoomNotFound = errors.New("automation: room not found")

	// ErrApplianceNotFound is returned when an appliance ID does not exist.
	ErrApplianceNotFound = errors.New("automation: appliance not found")

	// ErrInvalidPowerState is returned when a state other than on/off is requested.
	ErrInvalidPowerState = errors.New("automation: invalid power state")

	// ErrInvalidOptions is returned when the engine is constructed with an
	// unusable catalog, settings or policy.
	ErrInvalidOptions = errors.New("automation: invalid options")
)
