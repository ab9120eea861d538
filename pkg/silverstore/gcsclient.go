package silverstore

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
)

// The interfaces below cover the slice of *storage.Client used for reading
// bronze feed objects and writing silver files, so both paths can be tested
// against an in-memory bucket.

// GCSClient abstracts the top-level *storage.Client.
type GCSClient interface {
	Bucket(name string) GCSBucketHandle
}

// GCSBucketHandle abstracts a *storage.BucketHandle.
type GCSBucketHandle interface {
	Object(name string) GCSObjectHandle
}

// GCSObjectHandle abstracts a *storage.ObjectHandle.
type GCSObjectHandle interface {
	// NewWriter opens a writer that stores contentType on the object.
	NewWriter(ctx context.Context, contentType string) GCSWriter
	NewReader(ctx context.Context) (io.ReadCloser, error)
	// IfDoesNotExist returns a handle whose writes fail if the object already exists.
	IfDoesNotExist() GCSObjectHandle
}

// GCSWriter abstracts a *storage.Writer. The upload is committed by Close.
type GCSWriter interface {
	io.WriteCloser
}

// --- Adapters wrapping the concrete Google Cloud Storage client ---

type gcsClientAdapter struct {
	client *storage.Client
}

// NewGCSClientAdapter makes a *storage.Client conform to GCSClient.
func NewGCSClientAdapter(client *storage.Client) GCSClient {
	if client == nil {
		return nil
	}
	return &gcsClientAdapter{client: client}
}

func (a *gcsClientAdapter) Bucket(name string) GCSBucketHandle {
	return &gcsBucketHandleAdapter{handle: a.client.Bucket(name)}
}

type gcsBucketHandleAdapter struct {
	handle *storage.BucketHandle
}

func (a *gcsBucketHandleAdapter) Object(name string) GCSObjectHandle {
	return &gcsObjectHandleAdapter{handle: a.handle.Object(name)}
}

type gcsObjectHandleAdapter struct {
	handle *storage.ObjectHandle
}

func (a *gcsObjectHandleAdapter) NewWriter(ctx context.Context, contentType string) GCSWriter {
	w := a.handle.NewWriter(ctx)
	w.ContentType = contentType
	return w
}

func (a *gcsObjectHandleAdapter) NewReader(ctx context.Context) (io.ReadCloser, error) {
	return a.handle.NewReader(ctx)
}

func (a *gcsObjectHandleAdapter) IfDoesNotExist() GCSObjectHandle {
	return &gcsObjectHandleAdapter{handle: a.handle.If(storage.Conditions{DoesNotExist: true})}
}
