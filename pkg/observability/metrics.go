package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedsDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gtfsrt_silver_feeds_decoded_total",
		Help: "Feed snapshots decoded successfully.",
	}, []string{"kind"})
	MalformedFeeds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gtfsrt_silver_malformed_feeds_total",
		Help: "Payloads rejected as malformed GTFS-realtime.",
	}, []string{"kind"})
	RowsFlattened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gtfsrt_silver_rows_flattened_total",
		Help: "Rows produced by the flatteners.",
	}, []string{"kind"})
	EmptyFeeds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gtfsrt_silver_empty_feeds_total",
		Help: "Snapshots that produced no rows and were not persisted.",
	}, []string{"kind"})
	DuplicateSources = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gtfsrt_silver_duplicate_sources_total",
		Help: "Triggers for sources already present in the ledger.",
	}, []string{"kind"})
	SkippedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gtfsrt_silver_skipped_messages_total",
		Help: "Trigger messages acknowledged without decoding.",
	}, []string{"reason"})
	ObjectsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gtfsrt_silver_objects_written_total",
		Help: "Objects or table inserts written per batch.",
	}, []string{"kind"})
	PersistErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gtfsrt_silver_persist_errors_total",
		Help: "Batches that failed to persist.",
	}, []string{"kind"})
	DecodeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gtfsrt_silver_decode_latency_seconds",
		Help:    "Time spent decoding and flattening one snapshot.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
)

// ObserveDecodeLatency records the time since start for kind.
func ObserveDecodeLatency(kind string, start time.Time) {
	DecodeLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
