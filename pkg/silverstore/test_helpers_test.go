package silverstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// --- In-memory GCS ---

type storedObject struct {
	data        []byte
	contentType string
}

// mockGCSBucketHandle keeps committed objects in a map guarded by mu.
type mockGCSBucketHandle struct {
	mu       sync.Mutex
	objects  map[string]storedObject
	closeErr error
}

func (b *mockGCSBucketHandle) Object(name string) GCSObjectHandle {
	return &mockGCSObjectHandle{bucket: b, name: name}
}

func (b *mockGCSBucketHandle) get(name string) (storedObject, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.objects[name]
	return o, ok
}

func (b *mockGCSBucketHandle) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.objects))
	for n := range b.objects {
		out = append(out, n)
	}
	return out
}

type mockGCSObjectHandle struct {
	bucket         *mockGCSBucketHandle
	name           string
	ifDoesNotExist bool
}

func (o *mockGCSObjectHandle) NewWriter(_ context.Context, contentType string) GCSWriter {
	return &mockGCSWriter{object: o, contentType: contentType}
}

func (o *mockGCSObjectHandle) NewReader(_ context.Context) (io.ReadCloser, error) {
	obj, ok := o.bucket.get(o.name)
	if !ok {
		return nil, storage.ErrObjectNotExist
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (o *mockGCSObjectHandle) IfDoesNotExist() GCSObjectHandle {
	return &mockGCSObjectHandle{bucket: o.bucket, name: o.name, ifDoesNotExist: true}
}

// mockGCSWriter commits its buffer on Close, honouring the DoesNotExist condition.
type mockGCSWriter struct {
	object      *mockGCSObjectHandle
	contentType string
	buf         bytes.Buffer
	closed      bool
}

func (w *mockGCSWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("write on closed writer")
	}
	return w.buf.Write(p)
}

func (w *mockGCSWriter) Close() error {
	if w.closed {
		return errors.New("already closed")
	}
	w.closed = true

	b := w.object.bucket
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return b.closeErr
	}
	if _, exists := b.objects[w.object.name]; exists && w.object.ifDoesNotExist {
		return &googleapi.Error{Code: http.StatusPreconditionFailed, Message: "conditionNotMet"}
	}
	if b.objects == nil {
		b.objects = make(map[string]storedObject)
	}
	b.objects[w.object.name] = storedObject{data: bytes.Clone(w.buf.Bytes()), contentType: w.contentType}
	return nil
}

type mockGCSClient struct {
	bucket *mockGCSBucketHandle
}

func newMockGCSClient() *mockGCSClient {
	return &mockGCSClient{bucket: &mockGCSBucketHandle{}}
}

func (m *mockGCSClient) Bucket(_ string) GCSBucketHandle {
	return m.bucket
}
