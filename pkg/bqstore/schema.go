package bqstore

import (
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/illmade-knight/gtfsrt-silver/pkg/gtfsrt"
)

// Rows carry pointer fields for nullable columns, which bigquery.InferSchema
// cannot map, so both schemas are spelled out and rows are saved through
// ValueSaver wrappers. The dt column holds the batch partition date.

// TripUpdatesSchema is the table schema for flattened trip updates.
var TripUpdatesSchema = bigquery.Schema{
	{Name: "snapshot_utc", Type: bigquery.TimestampFieldType, Required: true},
	{Name: "dt", Type: bigquery.DateFieldType, Required: true},
	{Name: "entity_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "route_id", Type: bigquery.StringFieldType},
	{Name: "trip_id", Type: bigquery.StringFieldType},
	{Name: "start_date", Type: bigquery.StringFieldType},
	{Name: "stop_id", Type: bigquery.StringFieldType},
	{Name: "arrival_delay", Type: bigquery.IntegerFieldType},
	{Name: "departure_delay", Type: bigquery.IntegerFieldType},
	{Name: "vehicle_id", Type: bigquery.StringFieldType},
}

// VehiclePositionsSchema is the table schema for flattened vehicle positions.
var VehiclePositionsSchema = bigquery.Schema{
	{Name: "snapshot_utc", Type: bigquery.TimestampFieldType, Required: true},
	{Name: "dt", Type: bigquery.DateFieldType, Required: true},
	{Name: "entity_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "route_id", Type: bigquery.StringFieldType},
	{Name: "trip_id", Type: bigquery.StringFieldType},
	{Name: "vehicle_id", Type: bigquery.StringFieldType},
	{Name: "latitude", Type: bigquery.FloatFieldType},
	{Name: "longitude", Type: bigquery.FloatFieldType},
	{Name: "bearing", Type: bigquery.FloatFieldType},
	{Name: "speed_mps", Type: bigquery.FloatFieldType},
}

// SchemaFor returns the table schema for kind.
func SchemaFor(kind gtfsrt.FeedKind) (bigquery.Schema, error) {
	switch kind {
	case gtfsrt.TripUpdatesFeed:
		return TripUpdatesSchema, nil
	case gtfsrt.VehiclePositionsFeed:
		return VehiclePositionsSchema, nil
	default:
		return nil, fmt.Errorf("bqstore: unsupported feed kind %q", kind)
	}
}

// nullable maps a nil pointer to a NULL column value.
func nullable[T any](p *T) bigquery.Value {
	if p == nil {
		return nil
	}
	return *p
}

func nullableFloat(p *float32) bigquery.Value {
	if p == nil {
		return nil
	}
	return float64(*p)
}

func nullableInt(p *int32) bigquery.Value {
	if p == nil {
		return nil
	}
	return int64(*p)
}

type tripUpdateSaver struct {
	row      gtfsrt.TripUpdateRow
	dt       string
	insertID string
}

// Save implements bigquery.ValueSaver.
func (s tripUpdateSaver) Save() (map[string]bigquery.Value, string, error) {
	return map[string]bigquery.Value{
		"snapshot_utc":    s.row.SnapshotUTC,
		"dt":              s.dt,
		"entity_id":       s.row.EntityID,
		"route_id":        nullable(s.row.RouteID),
		"trip_id":         nullable(s.row.TripID),
		"start_date":      nullable(s.row.StartDate),
		"stop_id":         nullable(s.row.StopID),
		"arrival_delay":   nullableInt(s.row.ArrivalDelay),
		"departure_delay": nullableInt(s.row.DepartureDelay),
		"vehicle_id":      nullable(s.row.VehicleID),
	}, s.insertID, nil
}

type vehiclePositionSaver struct {
	row      gtfsrt.VehiclePositionRow
	dt       string
	insertID string
}

// Save implements bigquery.ValueSaver.
func (s vehiclePositionSaver) Save() (map[string]bigquery.Value, string, error) {
	return map[string]bigquery.Value{
		"snapshot_utc": s.row.SnapshotUTC,
		"dt":           s.dt,
		"entity_id":    s.row.EntityID,
		"route_id":     nullable(s.row.RouteID),
		"trip_id":      nullable(s.row.TripID),
		"vehicle_id":   nullable(s.row.VehicleID),
		"latitude":     nullableFloat(s.row.Latitude),
		"longitude":    nullableFloat(s.row.Longitude),
		"bearing":      nullableFloat(s.row.Bearing),
		"speed_mps":    nullableFloat(s.row.SpeedMPS),
	}, s.insertID, nil
}
