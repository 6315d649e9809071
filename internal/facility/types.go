package facility

import "time"

// Category classifies an appliance. Automation policy treats lights
// specially; the other categories are informational.
type Category string

const (
	CategoryLight    Category = "light"
	CategoryClimate  Category = "climate"
	CategoryComputer Category = "computer"
	CategoryOther    Category = "other"
)

// AllCategories returns all valid appliance categories.
func AllCategories() []Category {
	return []Category{
		CategoryLight,
		CategoryClimate,
		CategoryComputer,
		CategoryOther,
	}
}

// PowerState is the on/off state of an appliance.
type PowerState string

const (
	StateOn  PowerState = "on"
	StateOff PowerState = "off"
)

// IsOn reports whether the state is StateOn.
func (s PowerState) IsOn() bool {
	return s == StateOn
}

// Appliance is a switchable load inside a room.
//
// ID is unique across the whole facility, not just within its room, so an
// appliance can be addressed without knowing where it lives.
type Appliance struct {
	ID       int        `json:"id"`
	Name     string     `json:"name"`
	Category Category   `json:"category"`
	State    PowerState `json:"state"`
}

// Room is an occupancy zone.
//
// LastActivityAt is set on every occupancy transition: to the transition
// time when the room becomes occupied and to nil when it becomes vacant.
type Room struct {
	ID             int         `json:"id"`
	Name           string      `json:"name"`
	Occupied       bool        `json:"occupied"`
	LastActivityAt *time.Time  `json:"lastActivityAt"`
	Appliances     []Appliance `json:"appliances"`
}

// DeepCopy creates an independent copy of the room, including its
// appliance slice and activity timestamp.
func (r *Room) DeepCopy() *Room {
	if r == nil {
		return nil
	}

	cpy := *r
	if r.LastActivityAt != nil {
		t := *r.LastActivityAt
		cpy.LastActivityAt = &t
	}
	if r.Appliances != nil {
		cpy.Appliances = make([]Appliance, len(r.Appliances))
		copy(cpy.Appliances, r.Appliances)
	}
	return &cpy
}

// ActiveCount returns the number of appliances in the room that are on.
func (r *Room) ActiveCount() int {
	n := 0
	for _, a := range r.Appliances {
		if a.State.IsOn() {
			n++
		}
	}
	return n
}

// SystemStatus reports engine liveness and the time of the last mutation.
type SystemStatus struct {
	Online       bool      `json:"online"`
	LastUpdateAt time.Time `json:"lastUpdateAt"`
}

// Snapshot is the complete observable state of the facility.
//
// Version increases by one for every broadcast. Observers can use it to
// discard out-of-order deliveries, although the engine delivers in order.
type Snapshot struct {
	Version      uint64       `json:"version"`
	Rooms        []Room       `json:"rooms"`
	Settings     Settings     `json:"settings"`
	Stats        Stats        `json:"stats"`
	SystemStatus SystemStatus `json:"systemStatus"`
}

// Room returns the room with the given ID from the snapshot.
func (s Snapshot) Room(id int) (Room, bool) {
	for _, r := range s.Rooms {
		if r.ID == id {
			return r, true
		}
	}
	return Room{}, false
}

// Appliance returns the appliance with the given ID from the snapshot.
func (s Snapshot) Appliance(id int) (Appliance, bool) {
	for _, r := range s.Rooms {
		for _, a := range r.Appliances {
			if a.ID == id {
				return a, true
			}
		}
	}
	return Appliance{}, false
}
