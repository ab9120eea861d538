package silverstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/illmade-knight/gtfsrt-silver/pkg/silver"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ParquetSinkConfig holds configuration for the Parquet sink.
type ParquetSinkConfig struct {
	BucketName   string
	ObjectPrefix string
}

// ParquetSink writes each batch as one Parquet object in the silver bucket.
type ParquetSink struct {
	client GCSClient
	config ParquetSinkConfig
	namer  PathNamer
	logger zerolog.Logger
}

// NewParquetSink creates a sink writing to config.BucketName. A zero namer
// gets config.ObjectPrefix as its prefix.
func NewParquetSink(client GCSClient, config ParquetSinkConfig, namer PathNamer, logger zerolog.Logger) (*ParquetSink, error) {
	if client == nil {
		return nil, errors.New("GCS client cannot be nil")
	}
	if config.BucketName == "" {
		return nil, errors.New("GCS bucket name is required")
	}
	if namer.Prefix == "" {
		namer.Prefix = config.ObjectPrefix
	}
	return &ParquetSink{
		client: client,
		config: config,
		namer:  namer,
		logger: logger.With().Str("component", "ParquetSink").Str("bucket", config.BucketName).Logger(),
	}, nil
}

// Name implements silver.Sink.
func (s *ParquetSink) Name() string { return "parquet" }

// Persist encodes the batch and uploads it create-only. It returns the object
// name, or nothing for an empty batch. Object names are derived from the
// source, so an object that already exists holds an earlier write of the same
// source; it is left untouched and reported as written.
func (s *ParquetSink) Persist(ctx context.Context, batch *silver.Batch) ([]string, error) {
	if batch == nil || batch.Len() == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	if err := Encode(&buf, batch.Rows, batch.Partition); err != nil {
		return nil, fmt.Errorf("failed to encode %s batch from %s: %w", batch.Kind(), batch.Source, err)
	}

	objectName := s.namer.Name(batch.Kind(), batch.Partition, batch.Source)
	obj := s.client.Bucket(s.config.BucketName).Object(objectName).IfDoesNotExist()
	w := obj.NewWriter(ctx, ParquetContentType)

	n, writeErr := w.Write(buf.Bytes())
	closeErr := w.Close()
	if writeErr != nil {
		return nil, fmt.Errorf("failed to stream data for GCS object %s: %w", objectName, writeErr)
	}
	if closeErr != nil {
		if isPreconditionFailed(closeErr) {
			s.logger.Info().
				Str("object_name", objectName).
				Str("source", batch.Source).
				Msg("Silver file already present, keeping it.")
			return []string{objectName}, nil
		}
		return nil, fmt.Errorf("failed to close GCS object writer for %s: %w", objectName, closeErr)
	}

	s.logger.Info().
		Str("object_name", objectName).
		Str("source", batch.Source).
		Str("partition", batch.Partition).
		Int("rows", batch.Len()).
		Int("bytes_written", n).
		Msg("Wrote silver file.")
	return []string{objectName}, nil
}

// isPreconditionFailed recognises a DoesNotExist violation from either the
// JSON or the gRPC storage transport.
func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return true
	}
	return status.Code(err) == codes.FailedPrecondition
}
