// Package feedsource turns pipeline trigger messages into feed snapshots:
// the raw feed bytes plus the kind and date partition they belong to.
package feedsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/illmade-knight/gtfsrt-silver/pkg/gtfsrt"
	"github.com/illmade-knight/gtfsrt-silver/pkg/messagepipeline"
	"github.com/illmade-knight/gtfsrt-silver/pkg/silverstore"
	"github.com/rs/zerolog"
)

// Message attributes consulted by the resolver.
const (
	AttrEventType = "eventType"
	AttrBucketID  = "bucketId"
	AttrObjectID  = "objectId"
	AttrFeedKind  = "feed_kind"
	AttrDate      = "date"
	AttrSource    = "source"

	// EventObjectFinalize is the storage notification sent when an object is created.
	EventObjectFinalize = "OBJECT_FINALIZE"
)

var (
	// ErrUnknownFeedKind means neither an attribute nor the source name identified the feed kind.
	ErrUnknownFeedKind = errors.New("feedsource: unknown feed kind")
	// ErrSourceNotFound means the notified object no longer exists.
	ErrSourceNotFound = errors.New("feedsource: source object not found")
	// ErrPayloadTooLarge means the feed exceeds the configured byte limit.
	ErrPayloadTooLarge = errors.New("feedsource: payload too large")
)

var partitionRE = regexp.MustCompile(`dt=(\d{4}-\d{2}-\d{2})`)

const partitionLayout = "2006-01-02"

// Ref identifies the feed a trigger refers to, without its bytes.
type Ref struct {
	// ID is the trigger message ID.
	ID string
	// Source is gs://bucket/object for stored feeds, or the inline source name.
	Source    string
	Kind      gtfsrt.FeedKind
	Partition string

	bucket, object string
	inline         []byte
}

// Snapshot is one feed payload ready to decode.
type Snapshot struct {
	Ref
	Payload []byte
}

// IsStorageNotification reports whether msg names a stored object rather
// than carrying the feed itself.
func IsStorageNotification(msg *messagepipeline.Message) bool {
	return msg.Attribute(AttrBucketID) != "" && msg.Attribute(AttrObjectID) != ""
}

// Config holds resolver settings.
type Config struct {
	// MaxBytes caps the size of a feed payload. Zero means unlimited.
	MaxBytes int64
	// KindSegments maps a path segment to the feed kind it denotes.
	// Defaults to the feed kind names themselves.
	KindSegments map[string]gtfsrt.FeedKind
}

// DefaultKindSegments recognises .../tripupdates/... and .../vehiclepositions/...
func DefaultKindSegments() map[string]gtfsrt.FeedKind {
	m := make(map[string]gtfsrt.FeedKind, len(gtfsrt.FeedKinds))
	for _, k := range gtfsrt.FeedKinds {
		m[string(k)] = k
	}
	return m
}

// Resolver reads the feed a message refers to.
type Resolver struct {
	gcs    silverstore.GCSClient
	cfg    Config
	clock  func() time.Time
	logger zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock sets the clock used for the fallback partition date.
func WithClock(clock func() time.Time) Option {
	return func(r *Resolver) { r.clock = clock }
}

// NewResolver creates a Resolver. gcs may be nil when only inline payloads
// are expected; storage notifications then fail.
func NewResolver(gcs silverstore.GCSClient, cfg Config, logger zerolog.Logger, opts ...Option) *Resolver {
	if len(cfg.KindSegments) == 0 {
		cfg.KindSegments = DefaultKindSegments()
	}
	r := &Resolver{
		gcs:    gcs,
		cfg:    cfg,
		clock:  time.Now,
		logger: logger.With().Str("component", "FeedResolver").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve identifies and fetches the feed msg refers to. A nil snapshot with
// a nil error means the message carries nothing to decode, such as a delete
// notification.
func (r *Resolver) Resolve(ctx context.Context, msg *messagepipeline.Message) (*Snapshot, error) {
	ref, err := r.Identify(msg)
	if err != nil || ref == nil {
		return nil, err
	}
	return r.Fetch(ctx, ref)
}

// Identify works out the source, kind and partition of the feed msg refers
// to from its attributes alone. It returns nil for storage events other than
// object creation.
func (r *Resolver) Identify(msg *messagepipeline.Message) (*Ref, error) {
	if IsStorageNotification(msg) {
		return r.identifyObject(msg)
	}
	return r.identifyInline(msg)
}

func (r *Resolver) identifyObject(msg *messagepipeline.Message) (*Ref, error) {
	bucket, object := msg.Attribute(AttrBucketID), msg.Attribute(AttrObjectID)
	if ev := msg.Attribute(AttrEventType); ev != "" && ev != EventObjectFinalize {
		r.logger.Debug().Str("event_type", ev).Str("object", object).Msg("Ignoring non-finalize storage event.")
		return nil, nil
	}
	source := "gs://" + bucket + "/" + object
	kind, err := r.kind(msg, object)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, source)
	}
	return &Ref{
		ID:        msg.ID,
		Source:    source,
		Kind:      kind,
		Partition: r.partition(msg, object),
		bucket:    bucket,
		object:    object,
	}, nil
}

func (r *Resolver) identifyInline(msg *messagepipeline.Message) (*Ref, error) {
	source := msg.Attribute(AttrSource)
	if source == "" {
		source = msg.ID
	}
	kind, err := r.kind(msg, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, source)
	}
	return &Ref{
		ID:        msg.ID,
		Source:    source,
		Kind:      kind,
		Partition: r.partition(msg, source),
		inline:    msg.Payload,
	}, nil
}

// Fetch returns the bytes of ref, reading stored feeds from the bucket.
func (r *Resolver) Fetch(ctx context.Context, ref *Ref) (*Snapshot, error) {
	if ref.object == "" {
		if r.cfg.MaxBytes > 0 && int64(len(ref.inline)) > r.cfg.MaxBytes {
			return nil, fmt.Errorf("%w: %d bytes from %s", ErrPayloadTooLarge, len(ref.inline), ref.Source)
		}
		return &Snapshot{Ref: *ref, Payload: ref.inline}, nil
	}
	if r.gcs == nil {
		return nil, fmt.Errorf("no storage client configured to read %s", ref.Source)
	}

	rc, err := r.gcs.Bucket(ref.bucket).Object(ref.object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, ref.Source)
		}
		return nil, fmt.Errorf("failed to open %s: %w", ref.Source, err)
	}
	defer func() { _ = rc.Close() }()

	payload, err := r.readBounded(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ref.Source, err)
	}
	return &Snapshot{Ref: *ref, Payload: payload}, nil
}

func (r *Resolver) readBounded(rd io.Reader) ([]byte, error) {
	if r.cfg.MaxBytes <= 0 {
		return io.ReadAll(rd)
	}
	b, err := io.ReadAll(io.LimitReader(rd, r.cfg.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > r.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrPayloadTooLarge, r.cfg.MaxBytes)
	}
	return b, nil
}

func (r *Resolver) kind(msg *messagepipeline.Message, name string) (gtfsrt.FeedKind, error) {
	if attr := msg.Attribute(AttrFeedKind); attr != "" {
		k := gtfsrt.FeedKind(attr)
		if !k.Valid() {
			return "", fmt.Errorf("%w %q", ErrUnknownFeedKind, attr)
		}
		return k, nil
	}
	for _, seg := range strings.Split(name, "/") {
		if k, ok := r.cfg.KindSegments[seg]; ok {
			return k, nil
		}
	}
	return "", ErrUnknownFeedKind
}

// partition prefers the date attribute, then a dt=YYYY-MM-DD segment in the
// name, then today's UTC date.
func (r *Resolver) partition(msg *messagepipeline.Message, name string) string {
	if d := msg.Attribute(AttrDate); d != "" {
		if _, err := time.Parse(partitionLayout, d); err == nil {
			return d
		}
		r.logger.Warn().Str("date", d).Str("source", name).Msg("Ignoring malformed date attribute.")
	}
	if m := partitionRE.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return r.clock().UTC().Format(partitionLayout)
}
