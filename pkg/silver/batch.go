// Package silver defines the unit of work handed from the decode stage to
// the persistence stage, and the sink contract that persists it.
package silver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/illmade-knight/gtfsrt-silver/pkg/gtfsrt"
)

// Batch is one decoded snapshot together with where it came from.
type Batch struct {
	// Source names the bronze object or inline message the rows were decoded from.
	Source string
	// Partition is the YYYY-MM-DD date the rows are filed under.
	Partition string
	Rows      gtfsrt.RowSet
}

// Kind is the feed kind of the batch rows.
func (b *Batch) Kind() gtfsrt.FeedKind { return b.Rows.Kind }

// SnapshotUTC is the instant shared by every row in the batch.
func (b *Batch) SnapshotUTC() time.Time { return b.Rows.SnapshotUTC }

// Len is the row count.
func (b *Batch) Len() int { return b.Rows.Len() }

// Sink persists a batch and returns the names of whatever it wrote
// (object names, table names). An empty batch writes nothing.
type Sink interface {
	Name() string
	Persist(ctx context.Context, batch *Batch) ([]string, error)
}

// MultiSink writes a batch to each sink in order and stops at the first failure.
type MultiSink []Sink

// Name implements Sink.
func (m MultiSink) Name() string { return "multi" }

// Persist implements Sink. Outputs written before a failure are still returned.
func (m MultiSink) Persist(ctx context.Context, batch *Batch) ([]string, error) {
	if len(m) == 0 {
		return nil, errors.New("no sinks configured")
	}
	var written []string
	for _, s := range m {
		out, err := s.Persist(ctx, batch)
		written = append(written, out...)
		if err != nil {
			return written, fmt.Errorf("sink %s: %w", s.Name(), err)
		}
	}
	return written, nil
}
