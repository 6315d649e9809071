package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-occupancy/internal/facility"
)

// Measurement names written by the occupancy service.
const (
	MeasurementFacilityStats = "facility_stats"
	MeasurementRoomOccupancy = "room_occupancy"
)

// FacilityStatsPoint builds one facility_stats point.
//
// Tags: site. Fields: rooms, occupied_rooms, appliances, active_appliances,
// energy_saved_watts, online.
func FacilityStatsPoint(site string, st facility.Stats, online bool, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementFacilityStats,
		map[string]string{"site": site},
		map[string]interface{}{
			"rooms":              st.TotalRooms,
			"occupied_rooms":     st.OccupiedRooms,
			"appliances":         st.TotalAppliances,
			"active_appliances":  st.ActiveAppliances,
			"energy_saved_watts": st.EnergySaved,
			"online":             online,
		},
		at,
	)
}

// RoomOccupancyPoint builds one room_occupancy point.
//
// Tags: site, room_id, room. Fields: occupied, active_appliances,
// appliances.
func RoomOccupancyPoint(site string, room facility.Room, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementRoomOccupancy,
		map[string]string{
			"site":    site,
			"room_id": strconv.Itoa(room.ID),
			"room":    room.Name,
		},
		map[string]interface{}{
			"occupied":          room.Occupied,
			"active_appliances": room.ActiveCount(),
			"appliances":        len(room.Appliances),
		},
		at,
	)
}

// WritePoints queues points on the batched write API.
//
// Points are dropped silently when the client is not connected; write
// failures are reported through the SetOnError callback.
//
// Parameters:
//   - points: Points built by FacilityStatsPoint, RoomOccupancyPoint or write.NewPoint
//
// Example:
//
//	at := time.Now()
//	client.WritePoints(
//	    influxdb.FacilityStatsPoint("campus", snap.Stats, true, at),
//	    influxdb.RoomOccupancyPoint("campus", room, at),
//	)
func (c *Client) WritePoints(points ...*write.Point) {
	if !c.IsConnected() {
		return
	}
	for _, p := range points {
		c.writeAPI.WritePoint(p)
	}
}
