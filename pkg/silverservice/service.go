// Package silverservice assembles the bronze-to-silver pipeline: trigger
// messages are resolved to feed snapshots, decoded into rows and persisted
// to the configured sinks.
package silverservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/illmade-knight/gtfsrt-silver/pkg/feedsource"
	"github.com/illmade-knight/gtfsrt-silver/pkg/ledger"
	"github.com/illmade-knight/gtfsrt-silver/pkg/messagepipeline"
	"github.com/illmade-knight/gtfsrt-silver/pkg/microservice"
	"github.com/illmade-knight/gtfsrt-silver/pkg/notify"
	"github.com/illmade-knight/gtfsrt-silver/pkg/silver"
	"github.com/rs/zerolog"
)

// Config holds pipeline tuning. The trigger byte bounds apply to storage
// notification bodies only; inline feeds are bounded by the resolver.
type Config struct {
	NumWorkers      int
	MessageTimeout  time.Duration
	MinTriggerBytes int
	MaxTriggerBytes int
}

// Dependencies are the collaborators the pipeline stages use. Ledger and
// Notifier may be nil.
type Dependencies struct {
	Resolver SnapshotResolver
	Decoder  FeedDecoder
	Sink     silver.Sink
	Ledger   ledger.Ledger
	Notifier notify.Notifier
	Clock    func() time.Time
}

// New wires the transformer and processor into a streaming service over consumer.
func New(cfg Config, consumer messagepipeline.MessageConsumer, deps Dependencies, logger zerolog.Logger) (*messagepipeline.StreamingService[silver.Batch], error) {
	if deps.Resolver == nil {
		return nil, errors.New("snapshot resolver cannot be nil")
	}
	if deps.Decoder == nil {
		return nil, errors.New("feed decoder cannot be nil")
	}
	if deps.Sink == nil {
		return nil, errors.New("sink cannot be nil")
	}

	transformer := messagepipeline.WithPayloadValidationFor(
		NewTransformer(deps.Resolver, deps.Decoder, deps.Ledger, logger),
		cfg.MinTriggerBytes,
		cfg.MaxTriggerBytes,
		feedsource.IsStorageNotification,
		logger,
	)
	processor := NewProcessor(deps.Sink, deps.Ledger, deps.Notifier, deps.Clock, logger)

	svc, err := messagepipeline.NewStreamingService[silver.Batch](
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumWorkers, MessageTimeout: cfg.MessageTimeout},
		consumer,
		transformer,
		processor,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming service: %w", err)
	}
	return svc, nil
}

// Service runs the pipeline behind the shared HTTP surface.
type Service struct {
	*microservice.BaseServer
	pipeline *messagepipeline.StreamingService[silver.Batch]
	ledger   ledger.Ledger
	notifier notify.Notifier
}

// NewService combines a pipeline with its HTTP server. It owns led and
// notifier and releases them on Shutdown.
func NewService(base *microservice.BaseServer, pipeline *messagepipeline.StreamingService[silver.Batch], led ledger.Ledger, notifier notify.Notifier) *Service {
	if led == nil {
		led = ledger.Noop{}
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Service{BaseServer: base, pipeline: pipeline, ledger: led, notifier: notifier}
}

// Start begins consuming and then serves HTTP, reporting ready once both run.
func (s *Service) Start(ctx context.Context) error {
	if err := s.pipeline.Start(ctx); err != nil {
		return err
	}
	if err := s.BaseServer.Start(); err != nil {
		return err
	}
	s.SetReady(true)
	return nil
}

// Shutdown drains the pipeline, flushes notices, closes the ledger and stops HTTP.
func (s *Service) Shutdown(ctx context.Context) error {
	s.SetReady(false)
	var errs []error
	if err := s.pipeline.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("pipeline stop: %w", err))
	}
	if err := s.notifier.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("notifier stop: %w", err))
	}
	if err := s.ledger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("ledger close: %w", err))
	}
	if err := s.BaseServer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
