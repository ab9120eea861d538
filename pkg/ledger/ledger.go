// Package ledger records which bronze sources have already been written to
// silver, so a redelivered trigger can be acknowledged without producing a
// second file for the same snapshot.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/illmade-knight/gtfsrt-silver/pkg/gtfsrt"
)

// ErrNotFound is returned by Lookup when a key has no entry.
var ErrNotFound = errors.New("ledger: entry not found")

// Entry describes what was written for a source.
type Entry struct {
	Outputs     []string  `json:"outputs" firestore:"outputs"`
	Rows        int       `json:"rows" firestore:"rows"`
	SnapshotUTC time.Time `json:"snapshotUtc" firestore:"snapshotUtc"`
	RecordedAt  time.Time `json:"recordedAt" firestore:"recordedAt"`
}

// Ledger is a keyed store of processed sources.
type Ledger interface {
	// Lookup returns the entry for key, or ErrNotFound.
	Lookup(ctx context.Context, key string) (Entry, error)
	// Record stores the entry for key, replacing any previous one.
	Record(ctx context.Context, key string, entry Entry) error
	Close() error
}

// Key builds the ledger key for a source of the given kind.
func Key(kind gtfsrt.FeedKind, source string) string {
	return string(kind) + ":" + source
}

// Noop is a Ledger that remembers nothing.
type Noop struct{}

func (Noop) Lookup(context.Context, string) (Entry, error) { return Entry{}, ErrNotFound }
func (Noop) Record(context.Context, string, Entry) error   { return nil }
func (Noop) Close() error                                  { return nil }
