package gtfsrt

import "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

// Field returns a copy of the value behind p, or nil when the optional field
// was not present in the decoded message. A present zero value stays present.
func Field[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// NonEmpty is Field for strings, except that a present empty string is also
// reported as absent.
func NonEmpty(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	return Field(p)
}

// The helpers below read raw optional fields through possibly-nil parent
// messages. The generated Get methods cannot be used here because they
// return zero values for absent fields.

func routeID(t *gtfs.TripDescriptor) *string {
	if t == nil {
		return nil
	}
	return t.RouteId
}

func tripID(t *gtfs.TripDescriptor) *string {
	if t == nil {
		return nil
	}
	return t.TripId
}

func startDate(t *gtfs.TripDescriptor) *string {
	if t == nil {
		return nil
	}
	return t.StartDate
}

func stopID(stu *gtfs.TripUpdate_StopTimeUpdate) *string {
	if stu == nil {
		return nil
	}
	return stu.StopId
}

func delay(ev *gtfs.TripUpdate_StopTimeEvent) *int32 {
	if ev == nil {
		return nil
	}
	return Field(ev.Delay)
}

func vehicleID(v *gtfs.VehicleDescriptor) *string {
	if v == nil {
		return nil
	}
	return Field(v.Id)
}
