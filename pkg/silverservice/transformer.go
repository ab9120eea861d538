package silverservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/illmade-knight/gtfsrt-silver/pkg/feedsource"
	"github.com/illmade-knight/gtfsrt-silver/pkg/gtfsrt"
	"github.com/illmade-knight/gtfsrt-silver/pkg/ledger"
	"github.com/illmade-knight/gtfsrt-silver/pkg/messagepipeline"
	"github.com/illmade-knight/gtfsrt-silver/pkg/observability"
	"github.com/illmade-knight/gtfsrt-silver/pkg/silver"
	"github.com/rs/zerolog"
)

// SnapshotResolver locates the feed a trigger message refers to. Identify
// reads only the message; Fetch reads the feed bytes.
type SnapshotResolver interface {
	Identify(msg *messagepipeline.Message) (*feedsource.Ref, error)
	Fetch(ctx context.Context, ref *feedsource.Ref) (*feedsource.Snapshot, error)
}

// FeedDecoder decodes a payload as the given feed kind.
type FeedDecoder interface {
	Decode(kind gtfsrt.FeedKind, b []byte) (gtfsrt.RowSet, error)
}

// NewTransformer returns the decode stage of the pipeline.
//
// Triggers that can never succeed (unknown kind, vanished or oversized
// object), sources already in the ledger and snapshots without rows are
// skipped. The ledger is consulted before the feed is read. Malformed feeds and transient read failures are errors, so the
// message is Nacked and left to the subscription's retry and dead-letter policy.
func NewTransformer(resolver SnapshotResolver, decoder FeedDecoder, led ledger.Ledger, logger zerolog.Logger) messagepipeline.MessageTransformer[silver.Batch] {
	logger = logger.With().Str("component", "SilverTransformer").Logger()
	if led == nil {
		led = ledger.Noop{}
	}

	return func(ctx context.Context, msg *messagepipeline.Message) (*silver.Batch, bool, error) {
		ref, err := resolver.Identify(msg)
		switch {
		case errors.Is(err, feedsource.ErrUnknownFeedKind):
			return skip(logger, msg, "unknown_kind", err)
		case err != nil:
			return nil, false, fmt.Errorf("failed to identify message %s: %w", msg.ID, err)
		case ref == nil:
			observability.SkippedMessages.WithLabelValues("not_a_feed").Inc()
			return nil, true, nil
		}

		kind := string(ref.Kind)
		log := logger.With().Str("source", ref.Source).Str("kind", kind).Logger()

		key := ledger.Key(ref.Kind, ref.Source)
		if entry, err := led.Lookup(ctx, key); err == nil {
			observability.DuplicateSources.WithLabelValues(kind).Inc()
			log.Info().Strs("outputs", entry.Outputs).Msg("Source already processed, skipping.")
			return nil, true, nil
		} else if !errors.Is(err, ledger.ErrNotFound) {
			log.Warn().Err(err).Msg("Ledger lookup failed, processing anyway.")
		}

		snap, err := resolver.Fetch(ctx, ref)
		switch {
		case errors.Is(err, feedsource.ErrSourceNotFound):
			return skip(logger, msg, "source_not_found", err)
		case errors.Is(err, feedsource.ErrPayloadTooLarge):
			return skip(logger, msg, "too_large", err)
		case err != nil:
			return nil, false, fmt.Errorf("failed to fetch %s: %w", ref.Source, err)
		}

		start := time.Now()
		rows, err := decoder.Decode(snap.Kind, snap.Payload)
		observability.ObserveDecodeLatency(kind, start)
		if err != nil {
			if errors.Is(err, gtfsrt.ErrMalformedFeed) {
				observability.MalformedFeeds.WithLabelValues(kind).Inc()
			}
			return nil, false, fmt.Errorf("failed to decode %s: %w", snap.Source, err)
		}
		observability.FeedsDecoded.WithLabelValues(kind).Inc()

		if rows.Len() == 0 {
			observability.EmptyFeeds.WithLabelValues(kind).Inc()
			log.Info().Msg("Snapshot has no rows, nothing to persist.")
			return nil, true, nil
		}
		observability.RowsFlattened.WithLabelValues(kind).Add(float64(rows.Len()))

		return &silver.Batch{
			Source:    snap.Source,
			Partition: snap.Partition,
			Rows:      rows,
		}, false, nil
	}
}

func skip(logger zerolog.Logger, msg *messagepipeline.Message, reason string, err error) (*silver.Batch, bool, error) {
	observability.SkippedMessages.WithLabelValues(reason).Inc()
	logger.Warn().Err(err).Str("msg_id", msg.ID).Str("reason", reason).Msg("Skipping message.")
	return nil, true, nil
}
