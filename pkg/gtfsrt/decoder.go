package gtfsrt

import (
	"fmt"
	"slices"
	"time"
)

// Decoder turns serialized feed messages into row sets. The zero value is not
// usable; construct one with NewDecoder.
type Decoder struct {
	clock Clock
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithClock replaces the wall clock used for snapshot timestamps.
func WithClock(clock Clock) Option {
	return func(d *Decoder) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// NewDecoder creates a Decoder reading snapshot timestamps from time.Now
// unless overridden.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{clock: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var defaultDecoder = NewDecoder()

// DecodeTripUpdates decodes b and flattens its trip-update entities.
func DecodeTripUpdates(b []byte) ([]TripUpdateRow, error) {
	return defaultDecoder.TripUpdates(b)
}

// DecodeVehiclePositions decodes b and flattens its vehicle-position entities.
func DecodeVehiclePositions(b []byte) ([]VehiclePositionRow, error) {
	return defaultDecoder.VehiclePositions(b)
}

// TripUpdates decodes b and returns one row per stop-time update of every
// trip-update entity, in feed order. The snapshot is taken before parsing.
func (d *Decoder) TripUpdates(b []byte) ([]TripUpdateRow, error) {
	rows, _, err := d.tripUpdates(b)
	return rows, err
}

// VehiclePositions decodes b and returns one row per vehicle-position entity,
// in feed order. The snapshot is taken before parsing.
func (d *Decoder) VehiclePositions(b []byte) ([]VehiclePositionRow, error) {
	rows, _, err := d.vehiclePositions(b)
	return rows, err
}

// Decode dispatches b to the flattener for kind.
func (d *Decoder) Decode(kind FeedKind, b []byte) (RowSet, error) {
	set := RowSet{Kind: kind}
	var err error
	switch kind {
	case TripUpdatesFeed:
		set.TripUpdates, set.SnapshotUTC, err = d.tripUpdates(b)
	case VehiclePositionsFeed:
		set.VehiclePositions, set.SnapshotUTC, err = d.vehiclePositions(b)
	default:
		return RowSet{}, fmt.Errorf("gtfsrt: unsupported feed kind %q", kind)
	}
	if err != nil {
		return RowSet{}, err
	}
	return set, nil
}

func (d *Decoder) tripUpdates(b []byte) ([]TripUpdateRow, time.Time, error) {
	snapshot := snapshotAt(d.clock)
	feed, err := DecodeFeed(b)
	if err != nil {
		return nil, snapshot, err
	}
	rows := []TripUpdateRow{}
	for e := range Select(feed, KindTripUpdate) {
		rows = slices.AppendSeq(rows, FlattenTripUpdate(e.GetId(), e.GetTripUpdate(), snapshot))
	}
	return rows, snapshot, nil
}

func (d *Decoder) vehiclePositions(b []byte) ([]VehiclePositionRow, time.Time, error) {
	snapshot := snapshotAt(d.clock)
	feed, err := DecodeFeed(b)
	if err != nil {
		return nil, snapshot, err
	}
	rows := []VehiclePositionRow{}
	for e := range Select(feed, KindVehiclePosition) {
		rows = append(rows, FlattenVehiclePosition(e.GetId(), e.GetVehicle(), snapshot))
	}
	return rows, snapshot, nil
}
