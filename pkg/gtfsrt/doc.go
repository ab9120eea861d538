// Package gtfsrt decodes GTFS-realtime feed messages and flattens them into
// row sets suitable for columnar storage.
//
// Two flavours of row are produced:
//   - TripUpdateRow: one row per stop-time update nested in a trip-update entity.
//   - VehiclePositionRow: one row per vehicle-position entity.
//
// Every row produced by a single decode call carries the same snapshot
// timestamp, so one feed snapshot can be queried downstream as one unit.
// Optional protobuf fields are surfaced as nil pointers when absent; a field
// that is present but holds its zero value is never conflated with absence.
//
// The package performs no I/O and keeps no shared state. A Decoder may be used
// concurrently from any number of goroutines.
package gtfsrt
