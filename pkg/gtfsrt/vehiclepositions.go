package gtfsrt

import (
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
)

// FlattenVehiclePosition returns the single row describing vp. Position
// columns are all nil when vp carries no position; bearing and speed are
// resolved independently of the coordinates.
func FlattenVehiclePosition(entityID string, vp *gtfs.VehiclePosition, snapshot time.Time) VehiclePositionRow {
	trip := vp.GetTrip()
	row := VehiclePositionRow{
		SnapshotUTC: snapshot,
		EntityID:    entityID,
		RouteID:     Field(routeID(trip)),
		TripID:      Field(tripID(trip)),
		VehicleID:   vehicleID(vp.GetVehicle()),
	}
	if pos := vp.GetPosition(); pos != nil {
		row.Latitude = Field(pos.Latitude)
		row.Longitude = Field(pos.Longitude)
		row.Bearing = Field(pos.Bearing)
		row.SpeedMPS = Field(pos.Speed)
	}
	return row
}
