package gtfsrt_test

import (
	"testing"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

// newFeed wraps entities in a valid envelope.
func newFeed(entities ...*gtfs.FeedEntity) *gtfs.FeedMessage {
	return &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(1735732800),
		},
		Entity: entities,
	}
}

func marshalFeed(t *testing.T, feed *gtfs.FeedMessage) []byte {
	t.Helper()
	b, err := proto.Marshal(feed)
	require.NoError(t, err)
	return b
}

func tripUpdateEntity(id string, trip *gtfs.TripDescriptor, updates ...*gtfs.TripUpdate_StopTimeUpdate) *gtfs.FeedEntity {
	if trip == nil {
		trip = &gtfs.TripDescriptor{}
	}
	return &gtfs.FeedEntity{
		Id: proto.String(id),
		TripUpdate: &gtfs.TripUpdate{
			Trip:           trip,
			StopTimeUpdate: updates,
		},
	}
}

func vehicleEntity(id string, vp *gtfs.VehiclePosition) *gtfs.FeedEntity {
	return &gtfs.FeedEntity{Id: proto.String(id), Vehicle: vp}
}

func alertEntity(id string) *gtfs.FeedEntity {
	return &gtfs.FeedEntity{Id: proto.String(id), Alert: &gtfs.Alert{}}
}

func stopUpdate(stopID string, arrivalDelay, departureDelay *int32) *gtfs.TripUpdate_StopTimeUpdate {
	stu := &gtfs.TripUpdate_StopTimeUpdate{StopId: proto.String(stopID)}
	if arrivalDelay != nil {
		stu.Arrival = &gtfs.TripUpdate_StopTimeEvent{Delay: arrivalDelay}
	}
	if departureDelay != nil {
		stu.Departure = &gtfs.TripUpdate_StopTimeEvent{Delay: departureDelay}
	}
	return stu
}

// tickingClock returns a clock that advances by one second on every reading.
func tickingClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(time.Second)
		return now
	}
}
