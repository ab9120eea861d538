package gtfsrt

import "time"

// Clock supplies the wall-clock reading used for snapshot timestamps.
type Clock func() time.Time

// snapshotPrecision matches the timestamp(microsecond) column the rows are
// persisted with, so a row read back from storage equals the one written.
const snapshotPrecision = time.Microsecond

// snapshotAt normalizes a clock reading into a snapshot instant.
func snapshotAt(clock Clock) time.Time {
	return clock().UTC().Truncate(snapshotPrecision)
}
