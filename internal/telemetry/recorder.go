// Package telemetry records facility snapshots as InfluxDB time series.
package telemetry

import (
	"context"
	"sync"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-occupancy/internal/facility"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/influxdb"
)

// PointWriter queues points for writing. *influxdb.Client satisfies it.
type PointWriter interface {
	WritePoints(points ...*write.Point)
}

// Recorder is an engine observer that writes one facility_stats point and
// one room_occupancy point per room for each snapshot.
//
// Notify only stores the snapshot; Run turns it into points so the engine's
// publish path never waits on the InfluxDB client. Bursts of snapshots
// collapse into the newest one.
type Recorder struct {
	writer PointWriter
	site   string

	mu      sync.Mutex
	latest  *facility.Snapshot
	pending chan struct{}
	written uint64
}

// NewRecorder creates a recorder tagging points with site.
func NewRecorder(writer PointWriter, site string) *Recorder {
	return &Recorder{
		writer:  writer,
		site:    site,
		pending: make(chan struct{}, 1),
	}
}

// Notify implements automation.Observer.
func (r *Recorder) Notify(snap facility.Snapshot) {
	r.mu.Lock()
	if r.latest == nil || snap.Version >= r.latest.Version {
		r.latest = &snap
	}
	r.mu.Unlock()

	select {
	case r.pending <- struct{}{}:
	default:
	}
}

// Run writes snapshots until ctx is cancelled, then writes any snapshot
// still pending.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.writeLatest()
			return nil
		case <-r.pending:
			r.writeLatest()
		}
	}
}

// Written returns how many snapshots have been turned into points.
func (r *Recorder) Written() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

func (r *Recorder) writeLatest() {
	r.mu.Lock()
	snap := r.latest
	r.latest = nil
	r.mu.Unlock()

	if snap == nil {
		return
	}
	r.writer.WritePoints(Points(r.site, *snap)...)

	r.mu.Lock()
	r.written++
	r.mu.Unlock()
}

// Points converts a snapshot into InfluxDB points stamped with the
// snapshot's last update time.
func Points(site string, snap facility.Snapshot) []*write.Point {
	at := snap.SystemStatus.LastUpdateAt
	points := make([]*write.Point, 0, len(snap.Rooms)+1)
	points = append(points, influxdb.FacilityStatsPoint(site, snap.Stats, snap.SystemStatus.Online, at))
	for _, room := range snap.Rooms {
		points = append(points, influxdb.RoomOccupancyPoint(site, room, at))
	}
	return points
}
