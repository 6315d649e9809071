// Package influxdb writes occupancy telemetry to InfluxDB v2.
//
// It wraps influxdb-client-go with a ping-verified connection, the
// non-blocking batched write API and point builders for the two
// measurements the service records:
//
//	facility_stats  site                    rooms, occupied_rooms, appliances,
//	                                        active_appliances, energy_saved_watts, online
//	room_occupancy  site, room_id, room     occupied, active_appliances, appliances
//
// Batching follows influxdb.batch_size and influxdb.flush_interval. Write
// failures are reported asynchronously through SetOnError.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WritePoints(influxdb.FacilityStatsPoint("campus", snap.Stats, true, now))
package influxdb
