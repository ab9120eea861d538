package gtfsrt

import "time"

// TripUpdateRow is one stop-time update of a trip-update entity, flattened.
type TripUpdateRow struct {
	SnapshotUTC    time.Time `json:"snapshot_utc" parquet:"snapshot_utc,timestamp(microsecond)"`
	EntityID       string    `json:"entity_id" parquet:"entity_id"`
	RouteID        *string   `json:"route_id" parquet:"route_id,optional"`
	TripID         *string   `json:"trip_id" parquet:"trip_id,optional"`
	StartDate      *string   `json:"start_date" parquet:"start_date,optional"`
	StopID         *string   `json:"stop_id" parquet:"stop_id,optional"`
	ArrivalDelay   *int32    `json:"arrival_delay" parquet:"arrival_delay,optional"`
	DepartureDelay *int32    `json:"departure_delay" parquet:"departure_delay,optional"`
	VehicleID      *string   `json:"vehicle_id" parquet:"vehicle_id,optional"`
}

// VehiclePositionRow is one vehicle-position entity, flattened.
type VehiclePositionRow struct {
	SnapshotUTC time.Time `json:"snapshot_utc" parquet:"snapshot_utc,timestamp(microsecond)"`
	EntityID    string    `json:"entity_id" parquet:"entity_id"`
	RouteID     *string   `json:"route_id" parquet:"route_id,optional"`
	TripID      *string   `json:"trip_id" parquet:"trip_id,optional"`
	VehicleID   *string   `json:"vehicle_id" parquet:"vehicle_id,optional"`
	Latitude    *float32  `json:"latitude" parquet:"latitude,optional"`
	Longitude   *float32  `json:"longitude" parquet:"longitude,optional"`
	Bearing     *float32  `json:"bearing" parquet:"bearing,optional"`
	SpeedMPS    *float32  `json:"speed_mps" parquet:"speed_mps,optional"`
}

// FeedKind names the flavour of feed a payload is decoded as.
type FeedKind string

const (
	TripUpdatesFeed      FeedKind = "tripupdates"
	VehiclePositionsFeed FeedKind = "vehiclepositions"
)

// FeedKinds lists the supported feed kinds.
var FeedKinds = []FeedKind{TripUpdatesFeed, VehiclePositionsFeed}

// Valid reports whether k is one of FeedKinds.
func (k FeedKind) Valid() bool {
	return k == TripUpdatesFeed || k == VehiclePositionsFeed
}

// RowSet is the result of decoding one payload as a given feed kind. Only the
// slice matching Kind is populated.
type RowSet struct {
	Kind             FeedKind
	SnapshotUTC      time.Time
	TripUpdates      []TripUpdateRow
	VehiclePositions []VehiclePositionRow
}

// Len returns the number of rows in the set.
func (r RowSet) Len() int {
	return len(r.TripUpdates) + len(r.VehiclePositions)
}
