package gtfsrt

import (
	"iter"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
)

// FlattenTripUpdate lazily yields one row per stop-time update of tu. A trip
// update without stop-time updates yields nothing.
func FlattenTripUpdate(entityID string, tu *gtfs.TripUpdate, snapshot time.Time) iter.Seq[TripUpdateRow] {
	return func(yield func(TripUpdateRow) bool) {
		trip := tu.GetTrip()
		for _, stu := range tu.GetStopTimeUpdate() {
			row := TripUpdateRow{
				SnapshotUTC:    snapshot,
				EntityID:       entityID,
				RouteID:        NonEmpty(routeID(trip)),
				TripID:         NonEmpty(tripID(trip)),
				StartDate:      NonEmpty(startDate(trip)),
				StopID:         NonEmpty(stopID(stu)),
				ArrivalDelay:   delay(stu.GetArrival()),
				DepartureDelay: delay(stu.GetDeparture()),
				VehicleID:      vehicleID(tu.GetVehicle()),
			}
			if !yield(row) {
				return
			}
		}
	}
}
