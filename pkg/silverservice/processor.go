package silverservice

import (
	"context"
	"time"

	"github.com/illmade-knight/gtfsrt-silver/pkg/ledger"
	"github.com/illmade-knight/gtfsrt-silver/pkg/messagepipeline"
	"github.com/illmade-knight/gtfsrt-silver/pkg/notify"
	"github.com/illmade-knight/gtfsrt-silver/pkg/observability"
	"github.com/illmade-knight/gtfsrt-silver/pkg/silver"
	"github.com/rs/zerolog"
)

// NewProcessor returns the persist stage of the pipeline. A sink failure
// Nacks the message. Once the batch is written, ledger and notice failures
// are logged but do not fail the message: a retry would either be skipped by
// the ledger or write a second copy of the same snapshot.
func NewProcessor(sink silver.Sink, led ledger.Ledger, notifier notify.Notifier, clock func() time.Time, logger zerolog.Logger) messagepipeline.StreamProcessor[silver.Batch] {
	logger = logger.With().Str("component", "SilverProcessor").Logger()
	if led == nil {
		led = ledger.Noop{}
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if clock == nil {
		clock = time.Now
	}

	return func(ctx context.Context, original messagepipeline.Message, batch *silver.Batch) error {
		kind := string(batch.Kind())
		log := logger.With().Str("msg_id", original.ID).Str("source", batch.Source).Str("kind", kind).Logger()

		outputs, err := sink.Persist(ctx, batch)
		if err != nil {
			observability.PersistErrors.WithLabelValues(kind).Inc()
			return err
		}
		observability.ObjectsWritten.WithLabelValues(kind).Add(float64(len(outputs)))

		entry := ledger.Entry{
			Outputs:     outputs,
			Rows:        batch.Len(),
			SnapshotUTC: batch.SnapshotUTC(),
			RecordedAt:  clock().UTC(),
		}
		if err := led.Record(ctx, ledger.Key(batch.Kind(), batch.Source), entry); err != nil {
			log.Warn().Err(err).Msg("Failed to record source in ledger.")
		}

		notice := notify.Notice{
			Source:      batch.Source,
			Kind:        kind,
			Partition:   batch.Partition,
			Objects:     outputs,
			Rows:        batch.Len(),
			SnapshotUTC: batch.SnapshotUTC(),
		}
		if err := notifier.Notify(ctx, notice); err != nil {
			log.Error().Err(err).Msg("Failed to publish completion notice.")
		}

		log.Info().Int("rows", batch.Len()).Strs("outputs", outputs).Str("partition", batch.Partition).Msg("Persisted snapshot.")
		return nil
	}
}
