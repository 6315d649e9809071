package facility

// WattsPerIdleAppliance is the fixed per-appliance figure used to estimate
// energy saved by appliances that are switched off.
const WattsPerIdleAppliance = 50

// Stats are aggregate counters derived from the room list.
type Stats struct {
	TotalRooms       int `json:"totalRooms"`
	OccupiedRooms    int `json:"occupiedRooms"`
	TotalAppliances  int `json:"totalAppliances"`
	ActiveAppliances int `json:"activeAppliances"`
	EnergySaved      int `json:"energySaved"`
}

// ComputeStats recomputes the aggregate counters for the given rooms.
func ComputeStats(rooms []Room) Stats {
	st := Stats{TotalRooms: len(rooms)}
	for i := range rooms {
		if rooms[i].Occupied {
			st.OccupiedRooms++
		}
		st.TotalAppliances += len(rooms[i].Appliances)
		st.ActiveAppliances += rooms[i].ActiveCount()
	}
	st.EnergySaved = (st.TotalAppliances - st.ActiveAppliances) * WattsPerIdleAppliance
	return st
}
