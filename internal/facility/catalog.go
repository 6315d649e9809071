package facility

import (
	"fmt"
	"strings"
)

// DefaultCatalog returns the built-in room and appliance catalog used when
// the configuration does not define one.
func DefaultCatalog() []Room {
	return []Room{
		{
			ID:   1,
			Name: "Conference Room A",
			Appliances: []Appliance{
				{ID: 1, Name: "Ceiling Lights", Category: CategoryLight, State: StateOff},
				{ID: 2, Name: "Air Conditioner", Category: CategoryClimate, State: StateOff},
				{ID: 3, Name: "Projector", Category: CategoryOther, State: StateOff},
			},
		},
		{
			ID:   2,
			Name: "Lab",
			Appliances: []Appliance{
				{ID: 4, Name: "Bench Lights", Category: CategoryLight, State: StateOn},
				{ID: 5, Name: "Workstation", Category: CategoryComputer, State: StateOn},
				{ID: 6, Name: "Fume Extractor", Category: CategoryClimate, State: StateOff},
			},
		},
		{
			ID:   3,
			Name: "Open Office",
			Appliances: []Appliance{
				{ID: 7, Name: "Overhead Lights", Category: CategoryLight, State: StateOff},
				{ID: 8, Name: "Desk Lamps", Category: CategoryLight, State: StateOff},
				{ID: 9, Name: "Heat Pump", Category: CategoryClimate, State: StateOff},
				{ID: 10, Name: "Shared PCs", Category: CategoryComputer, State: StateOff},
			},
		},
		{
			ID:   4,
			Name: "Break Room",
			Appliances: []Appliance{
				{ID: 11, Name: "Pendant Lights", Category: CategoryLight, State: StateOff},
				{ID: 12, Name: "Coffee Machine", Category: CategoryOther, State: StateOff},
			},
		},
	}
}

// ValidateCatalog checks a catalog before it is handed to the engine.
//
// Room IDs must be unique, appliance IDs must be unique across every room,
// names must be non-empty, and categories and states must be known values.
// All problems are reported together.
func ValidateCatalog(rooms []Room) error {
	var errs []string

	if len(rooms) == 0 {
		errs = append(errs, "at least one room is required")
	}

	roomIDs := make(map[int]struct{}, len(rooms))
	applianceIDs := make(map[int]int)

	for _, r := range rooms {
		if _, dup := roomIDs[r.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate room id %d", r.ID))
		}
		roomIDs[r.ID] = struct{}{}

		if strings.TrimSpace(r.Name) == "" {
			errs = append(errs, fmt.Sprintf("room %d: name is required", r.ID))
		}

		for _, a := range r.Appliances {
			if owner, dup := applianceIDs[a.ID]; dup {
				errs = append(errs, fmt.Sprintf("appliance id %d used in room %d and room %d", a.ID, owner, r.ID))
			} else {
				applianceIDs[a.ID] = r.ID
			}
			if strings.TrimSpace(a.Name) == "" {
				errs = append(errs, fmt.Sprintf("appliance %d: name is required", a.ID))
			}
			if !ValidCategory(a.Category) {
				errs = append(errs, fmt.Sprintf("appliance %d: unknown category %q", a.ID, a.Category))
			}
			if !ValidPowerState(a.State) {
				errs = append(errs, fmt.Sprintf("appliance %d: unknown state %q", a.ID, a.State))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(errs, "; "))
	}
	return nil
}
