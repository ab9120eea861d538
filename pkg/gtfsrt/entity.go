package gtfsrt

import (
	"fmt"
	"iter"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
)

// EntityKind is the closed set of entity payloads the decoder distinguishes.
type EntityKind int

const (
	KindOther EntityKind = iota
	KindTripUpdate
	KindVehiclePosition
	KindAlert
)

// EntityKinds lists every kind, in a stable order.
var EntityKinds = []EntityKind{KindTripUpdate, KindVehiclePosition, KindAlert, KindOther}

func (k EntityKind) String() string {
	switch k {
	case KindTripUpdate:
		return "trip_update"
	case KindVehiclePosition:
		return "vehicle_position"
	case KindAlert:
		return "alert"
	case KindOther:
		return "other"
	}
	return fmt.Sprintf("EntityKind(%d)", int(k))
}

// Matches reports whether e carries a payload of kind k. An entity may carry
// several payloads and so match several kinds; KindOther matches only entities
// carrying none of the known ones.
func (k EntityKind) Matches(e *gtfs.FeedEntity) bool {
	if e == nil {
		return false
	}
	switch k {
	case KindTripUpdate:
		return e.TripUpdate != nil
	case KindVehiclePosition:
		return e.Vehicle != nil
	case KindAlert:
		return e.Alert != nil
	case KindOther:
		return e.TripUpdate == nil && e.Vehicle == nil && e.Alert == nil
	}
	return false
}

// Select yields the entities of feed that match kind, in feed order.
func Select(feed *gtfs.FeedMessage, kind EntityKind) iter.Seq[*gtfs.FeedEntity] {
	return func(yield func(*gtfs.FeedEntity) bool) {
		for _, e := range feed.GetEntity() {
			if !kind.Matches(e) {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// CountKinds tallies how many entities of feed match each kind.
func CountKinds(feed *gtfs.FeedMessage) map[EntityKind]int {
	counts := make(map[EntityKind]int, len(EntityKinds))
	for _, e := range feed.GetEntity() {
		for _, k := range EntityKinds {
			if k.Matches(e) {
				counts[k]++
			}
		}
	}
	return counts
}
