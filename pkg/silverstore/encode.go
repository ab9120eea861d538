package silverstore

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/illmade-knight/gtfsrt-silver/pkg/gtfsrt"
	"github.com/parquet-go/parquet-go"
)

// ParquetContentType is stored on every silver object.
const ParquetContentType = "application/vnd.apache.parquet"

// TripUpdateRecord is a trip-update row as stored in a silver file, with the
// partition date repeated as the dt column.
type TripUpdateRecord struct {
	gtfsrt.TripUpdateRow
	Dt int32 `parquet:"dt,date"`
}

// VehiclePositionRecord is a vehicle-position row as stored in a silver file.
type VehiclePositionRecord struct {
	gtfsrt.VehiclePositionRow
	Dt int32 `parquet:"dt,date"`
}

// Date returns the dt column as a UTC midnight.
func (r TripUpdateRecord) Date() time.Time { return fromEpochDays(r.Dt) }

// Date returns the dt column as a UTC midnight.
func (r VehiclePositionRecord) Date() time.Time { return fromEpochDays(r.Dt) }

// EncodeTripUpdates writes rows to w as a snappy-compressed Parquet file,
// stamping each with dt.
func EncodeTripUpdates(w io.Writer, rows []gtfsrt.TripUpdateRow, dt time.Time) error {
	days := epochDays(dt)
	records := make([]TripUpdateRecord, len(rows))
	for i, r := range rows {
		records[i] = TripUpdateRecord{TripUpdateRow: r, Dt: days}
	}
	return encodeRows(w, records)
}

// EncodeVehiclePositions writes rows to w as a snappy-compressed Parquet file,
// stamping each with dt.
func EncodeVehiclePositions(w io.Writer, rows []gtfsrt.VehiclePositionRow, dt time.Time) error {
	days := epochDays(dt)
	records := make([]VehiclePositionRecord, len(rows))
	for i, r := range rows {
		records[i] = VehiclePositionRecord{VehiclePositionRow: r, Dt: days}
	}
	return encodeRows(w, records)
}

// Encode writes the rows of set matching its kind. partition is the
// YYYY-MM-DD dt value; when empty the snapshot's UTC date is used.
func Encode(w io.Writer, set gtfsrt.RowSet, partition string) error {
	dt, err := partitionDate(partition, set.SnapshotUTC)
	if err != nil {
		return err
	}
	switch set.Kind {
	case gtfsrt.TripUpdatesFeed:
		return EncodeTripUpdates(w, set.TripUpdates, dt)
	case gtfsrt.VehiclePositionsFeed:
		return EncodeVehiclePositions(w, set.VehiclePositions, dt)
	default:
		return fmt.Errorf("silverstore: unsupported feed kind %q", set.Kind)
	}
}

func encodeRows[T any](w io.Writer, rows []T) error {
	pw := parquet.NewGenericWriter[T](w, parquet.Compression(&parquet.Snappy))
	if _, err := pw.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// ReadTripUpdates parses a Parquet file produced by EncodeTripUpdates.
func ReadTripUpdates(b []byte) ([]TripUpdateRecord, error) {
	return parquet.Read[TripUpdateRecord](bytes.NewReader(b), int64(len(b)))
}

// ReadVehiclePositions parses a Parquet file produced by EncodeVehiclePositions.
func ReadVehiclePositions(b []byte) ([]VehiclePositionRecord, error) {
	return parquet.Read[VehiclePositionRecord](bytes.NewReader(b), int64(len(b)))
}

func partitionDate(partition string, snapshot time.Time) (time.Time, error) {
	if partition == "" {
		y, m, d := snapshot.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	dt, err := time.Parse(time.DateOnly, partition)
	if err != nil {
		return time.Time{}, fmt.Errorf("silverstore: invalid partition date %q: %w", partition, err)
	}
	return dt, nil
}

const secondsPerDay = 24 * 60 * 60

func epochDays(t time.Time) int32 {
	y, m, d := t.Date()
	return int32(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay)
}

func fromEpochDays(days int32) time.Time {
	return time.Unix(int64(days)*secondsPerDay, 0).UTC()
}
