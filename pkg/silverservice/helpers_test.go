package silverservice_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/illmade-knight/gtfsrt-silver/pkg/feedsource"
	"github.com/illmade-knight/gtfsrt-silver/pkg/messagepipeline"
	"github.com/illmade-knight/gtfsrt-silver/pkg/notify"
	"github.com/illmade-knight/gtfsrt-silver/pkg/silver"
	"github.com/illmade-knight/gtfsrt-silver/pkg/silverstore"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/protobuf/proto"
)

var fixedNow = time.Date(2024, 5, 1, 7, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func tripUpdatesFeed(t *testing.T, stops ...string) []byte {
	t.Helper()
	updates := make([]*gtfs.TripUpdate_StopTimeUpdate, 0, len(stops))
	for _, s := range stops {
		updates = append(updates, &gtfs.TripUpdate_StopTimeUpdate{
			StopId:  proto.String(s),
			Arrival: &gtfs.TripUpdate_StopTimeEvent{Delay: proto.Int32(30)},
		})
	}
	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{GtfsRealtimeVersion: proto.String("2.0")},
		Entity: []*gtfs.FeedEntity{{
			Id: proto.String("e1"),
			TripUpdate: &gtfs.TripUpdate{
				Trip:           &gtfs.TripDescriptor{TripId: proto.String("T1"), RouteId: proto.String("R1")},
				StopTimeUpdate: updates,
			},
		}},
	}
	b, err := proto.Marshal(feed)
	require.NoError(t, err)
	return b
}

func vehiclePositionsFeed(t *testing.T, n int) []byte {
	t.Helper()
	entities := make([]*gtfs.FeedEntity, 0, n)
	for i := range n {
		entities = append(entities, &gtfs.FeedEntity{
			Id: proto.String(fmt.Sprintf("vehicle-%05d", i)),
			Vehicle: &gtfs.VehiclePosition{
				Trip:     &gtfs.TripDescriptor{TripId: proto.String(fmt.Sprintf("trip-%05d", i))},
				Vehicle:  &gtfs.VehicleDescriptor{Id: proto.String(fmt.Sprintf("bus-%05d", i))},
				Position: &gtfs.Position{Latitude: proto.Float32(53.35), Longitude: proto.Float32(-6.26)},
			},
		})
	}
	b, err := proto.Marshal(&gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{GtfsRealtimeVersion: proto.String("2.0")},
		Entity: entities,
	})
	require.NoError(t, err)
	return b
}

func alertsOnlyFeed(t *testing.T) []byte {
	t.Helper()
	b, err := proto.Marshal(&gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{GtfsRealtimeVersion: proto.String("2.0")},
		Entity: []*gtfs.FeedEntity{{Id: proto.String("a1"), Alert: &gtfs.Alert{}}},
	})
	require.NoError(t, err)
	return b
}

// inlineMessage builds a trigger carrying the feed in its payload.
func inlineMessage(id, source string, payload []byte) *messagepipeline.Message {
	return &messagepipeline.Message{
		MessageData: messagepipeline.MessageData{ID: id, Payload: payload},
		Attributes:  map[string]string{feedsource.AttrSource: source},
	}
}

// --- fakes ---

type recordingSink struct {
	mu      sync.Mutex
	batches []*silver.Batch
	err     error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Persist(_ context.Context, b *silver.Batch) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.batches = append(s.batches, b)
	return []string{"obj-" + b.Source}, nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notify.Notice
	err     error
	stopped bool
}

func (n *recordingNotifier) Notify(_ context.Context, notice notify.Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

func (n *recordingNotifier) Stop(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopped = true
	return nil
}

// stubResolver identifies every message as ref and counts fetches.
type stubResolver struct {
	ref         *feedsource.Ref
	identifyErr error
	fetchErr    error

	mu      sync.Mutex
	fetches int
}

func (s *stubResolver) Identify(*messagepipeline.Message) (*feedsource.Ref, error) {
	return s.ref, s.identifyErr
}

func (s *stubResolver) Fetch(context.Context, *feedsource.Ref) (*feedsource.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return nil, s.fetchErr
}

func (s *stubResolver) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

var errTransient = errors.New("storage unavailable")

// flakySink fails its first failures calls, then succeeds.
type flakySink struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakySink) Name() string { return "flaky" }

func (s *flakySink) Persist(_ context.Context, b *silver.Batch) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return nil, errTransient
	}
	return []string{"table:" + b.Source}, nil
}

// memGCS is a create-only in-memory bucket store for the Parquet sink.
type memGCS struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemGCS() *memGCS { return &memGCS{objects: make(map[string][]byte)} }

func (m *memGCS) Bucket(name string) silverstore.GCSBucketHandle {
	return memBucket{gcs: m, name: name}
}

func (m *memGCS) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type memBucket struct {
	gcs  *memGCS
	name string
}

func (b memBucket) Object(name string) silverstore.GCSObjectHandle {
	return memObject{gcs: b.gcs, key: b.name + "/" + name}
}

type memObject struct {
	gcs        *memGCS
	key        string
	createOnly bool
}

func (o memObject) NewWriter(context.Context, string) silverstore.GCSWriter {
	return &memWriter{object: o}
}

func (o memObject) NewReader(context.Context) (io.ReadCloser, error) {
	o.gcs.mu.Lock()
	defer o.gcs.mu.Unlock()
	b, ok := o.gcs.objects[o.key]
	if !ok {
		return nil, storage.ErrObjectNotExist
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (o memObject) IfDoesNotExist() silverstore.GCSObjectHandle {
	o.createOnly = true
	return o
}

type memWriter struct {
	object memObject
	buf    bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memWriter) Close() error {
	g := w.object.gcs
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.objects[w.object.key]; exists && w.object.createOnly {
		return &googleapi.Error{Code: http.StatusPreconditionFailed, Message: "conditionNotMet"}
	}
	g.objects[w.object.key] = bytes.Clone(w.buf.Bytes())
	return nil
}

// mockConsumer feeds pushed messages to the pipeline.
type mockConsumer struct {
	msgs     chan messagepipeline.Message
	done     chan struct{}
	stopOnce sync.Once
}

func newMockConsumer() *mockConsumer {
	return &mockConsumer{msgs: make(chan messagepipeline.Message, 10), done: make(chan struct{})}
}

func (m *mockConsumer) Messages() <-chan messagepipeline.Message { return m.msgs }
func (m *mockConsumer) Start(context.Context) error              { return nil }
func (m *mockConsumer) Done() <-chan struct{}                    { return m.done }
func (m *mockConsumer) Stop(context.Context) error {
	m.stopOnce.Do(func() {
		close(m.msgs)
		close(m.done)
	})
	return nil
}
