package bqstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/illmade-knight/gtfsrt-silver/pkg/gtfsrt"
	"github.com/illmade-knight/gtfsrt-silver/pkg/silver"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPutter struct {
	calls [][]bigquery.ValueSaver
	err   error
}

func (m *mockPutter) Put(_ context.Context, src interface{}) error {
	m.calls = append(m.calls, src.([]bigquery.ValueSaver))
	return m.err
}

func ptr[T any](v T) *T { return &v }

var snapshot = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func vehicleBatch() *silver.Batch {
	return &silver.Batch{
		Source:    "gs://bronze/raw/vehiclepositions/dt=2024-05-01/a.pb",
		Partition: "2024-05-01",
		Rows: gtfsrt.RowSet{
			Kind:        gtfsrt.VehiclePositionsFeed,
			SnapshotUTC: snapshot,
			VehiclePositions: []gtfsrt.VehiclePositionRow{
				{SnapshotUTC: snapshot, EntityID: "v1", VehicleID: ptr("bus"), Latitude: ptr(float32(1.5)), SpeedMPS: ptr(float32(0))},
				{SnapshotUTC: snapshot, EntityID: "v2"},
			},
		},
	}
}

func TestRowInserter_Persist(t *testing.T) {
	// Arrange
	vp := &mockPutter{}
	tu := &mockPutter{}
	ins := NewRowInserterWithPutters(map[gtfsrt.FeedKind]NamedPutter{
		gtfsrt.VehiclePositionsFeed: {Name: "silver.vehicle_positions", Putter: vp},
		gtfsrt.TripUpdatesFeed:      {Name: "silver.trip_updates", Putter: tu},
	}, zerolog.Nop())

	// Act
	written, err := ins.Persist(context.Background(), vehicleBatch())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"silver.vehicle_positions"}, written)
	assert.Empty(t, tu.calls)
	require.Len(t, vp.calls, 1)
	require.Len(t, vp.calls[0], 2)

	first, id1, err := vp.calls[0][0].Save()
	require.NoError(t, err)
	assert.Equal(t, "bus", first["vehicle_id"])
	assert.Equal(t, float64(1.5), first["latitude"])
	assert.Equal(t, float64(0), first["speed_mps"], "present zero is not NULL")
	assert.Nil(t, first["longitude"])
	assert.Equal(t, "2024-05-01", first["dt"])
	assert.Equal(t, snapshot, first["snapshot_utc"])

	second, id2, err := vp.calls[0][1].Save()
	require.NoError(t, err)
	assert.Nil(t, second["vehicle_id"])
	assert.NotEqual(t, id1, id2)

	// Insert IDs are stable across redeliveries.
	again := Savers(vehicleBatch())
	_, sameID, _ := again[0].Save()
	assert.Equal(t, id1, sameID)
}

func TestRowInserter_TripUpdateValues(t *testing.T) {
	batch := &silver.Batch{
		Source:    "inline",
		Partition: "2024-05-01",
		Rows: gtfsrt.RowSet{
			Kind: gtfsrt.TripUpdatesFeed,
			TripUpdates: []gtfsrt.TripUpdateRow{
				{SnapshotUTC: snapshot, EntityID: "e", StopID: ptr("S1"), ArrivalDelay: ptr(int32(-5))},
			},
		},
	}
	savers := Savers(batch)
	require.Len(t, savers, 1)
	row, id, err := savers[0].Save()
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, int64(-5), row["arrival_delay"])
	assert.Nil(t, row["departure_delay"])
	assert.Nil(t, row["route_id"])
	assert.Equal(t, "S1", row["stop_id"])
	assert.Len(t, row, len(TripUpdatesSchema))
}

func TestRowInserter_SkipsUnconfiguredKindAndEmptyBatch(t *testing.T) {
	tu := &mockPutter{}
	ins := NewRowInserterWithPutters(map[gtfsrt.FeedKind]NamedPutter{
		gtfsrt.TripUpdatesFeed: {Name: "silver.trip_updates", Putter: tu},
	}, zerolog.Nop())

	written, err := ins.Persist(context.Background(), vehicleBatch())
	require.NoError(t, err)
	assert.Empty(t, written)

	written, err = ins.Persist(context.Background(), &silver.Batch{Rows: gtfsrt.RowSet{Kind: gtfsrt.TripUpdatesFeed}})
	require.NoError(t, err)
	assert.Empty(t, written)
	assert.Empty(t, tu.calls)
}

func TestRowInserter_PutError(t *testing.T) {
	boom := bigquery.PutMultiError{{RowIndex: 1, Errors: bigquery.MultiError{errors.New("bad row")}}}
	vp := &mockPutter{err: boom}
	ins := NewRowInserterWithPutters(map[gtfsrt.FeedKind]NamedPutter{
		gtfsrt.VehiclePositionsFeed: {Name: "silver.vehicle_positions", Putter: vp},
	}, zerolog.Nop())

	_, err := ins.Persist(context.Background(), vehicleBatch())
	require.Error(t, err)
	var multi bigquery.PutMultiError
	assert.ErrorAs(t, err, &multi)
}

func TestSchemaFor(t *testing.T) {
	s, err := SchemaFor(gtfsrt.VehiclePositionsFeed)
	require.NoError(t, err)
	assert.Equal(t, VehiclePositionsSchema, s)
	_, err = SchemaFor("alerts")
	assert.Error(t, err)
}

func TestVehiclePositionSaver_CoversSchema(t *testing.T) {
	row, _, err := vehiclePositionSaver{row: gtfsrt.VehiclePositionRow{SnapshotUTC: snapshot}, dt: "2024-05-01"}.Save()
	require.NoError(t, err)
	for _, f := range VehiclePositionsSchema {
		assert.Contains(t, row, f.Name)
	}
}
