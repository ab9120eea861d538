package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/illmade-knight/gtfsrt-silver/pkg/bqstore"
	"github.com/illmade-knight/gtfsrt-silver/pkg/config"
	"github.com/illmade-knight/gtfsrt-silver/pkg/feedsource"
	"github.com/illmade-knight/gtfsrt-silver/pkg/gtfsrt"
	"github.com/illmade-knight/gtfsrt-silver/pkg/ledger"
	"github.com/illmade-knight/gtfsrt-silver/pkg/messagepipeline"
	"github.com/illmade-knight/gtfsrt-silver/pkg/microservice"
	"github.com/illmade-knight/gtfsrt-silver/pkg/notify"
	"github.com/illmade-knight/gtfsrt-silver/pkg/observability"
	"github.com/illmade-knight/gtfsrt-silver/pkg/silver"
	"github.com/illmade-knight/gtfsrt-silver/pkg/silverservice"
	"github.com/illmade-knight/gtfsrt-silver/pkg/silverstore"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"google.golang.org/api/option"
)

const shutdownTimeout = 30 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "consume storage notifications and write silver files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				EnvVars: []string{"GTFSRT_CONFIG"},
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			logger, err := observability.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			return serve(c.Context, cfg, logger)
		},
	}
}

func serve(parent context.Context, cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	logger.Info().Str("http_port", svc.GetHTTPPort()).Msg("gtfsrt-silver running.")

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return svc.Shutdown(shutdownCtx)
}

// buildService creates the cloud clients and wires them into the service.
// The returned cleanup closes the clients.
func buildService(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*silverservice.Service, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}
	fail := func(err error) (*silverservice.Service, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	psClient, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return fail(fmt.Errorf("pubsub.NewClient: %w", err))
	}
	closers = append(closers, psClient.Close)

	gcs, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return fail(fmt.Errorf("storage.NewClient: %w", err))
	}
	closers = append(closers, gcs.Close)
	gcsClient := silverstore.NewGCSClientAdapter(gcs)

	consumerCfg := messagepipeline.NewGooglePubsubConsumerDefaults(cfg.Consumer.SubscriptionID)
	consumerCfg.MaxOutstandingMessages = cfg.Consumer.MaxOutstandingMessages
	consumer, err := messagepipeline.NewGooglePubsubConsumer(ctx, consumerCfg, psClient, logger)
	if err != nil {
		return fail(err)
	}

	parquetSink, err := silverstore.NewParquetSink(gcsClient, silverstore.ParquetSinkConfig{
		BucketName:   cfg.Silver.Bucket,
		ObjectPrefix: cfg.Silver.Prefix,
	}, silverstore.PathNamer{}, logger)
	if err != nil {
		return fail(err)
	}
	sinks := silver.MultiSink{parquetSink}

	if cfg.BigQuery.Enabled {
		bq, err := bqstore.NewProductionBigQueryClient(ctx, cfg.ProjectID, cfg.CredentialsFile, logger)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, bq.Close)
		inserter, err := bqstore.NewRowInserter(ctx, bq, &bqstore.BigQueryDatasetConfig{
			DatasetID:             cfg.BigQuery.DatasetID,
			TripUpdatesTable:      cfg.BigQuery.TripUpdatesTable,
			VehiclePositionsTable: cfg.BigQuery.VehiclePositionsTable,
		}, logger)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, inserter)
	}

	led, err := buildLedger(ctx, cfg, opts, logger, &closers)
	if err != nil {
		return fail(err)
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notify.TopicID != "" {
		notifier, err = notify.NewPubsubNotifier(ctx, notify.NewPubsubNotifierDefaults(cfg.Notify.TopicID), psClient, logger)
		if err != nil {
			return fail(err)
		}
	}

	resolver := feedsource.NewResolver(gcsClient, feedsource.Config{
		MaxBytes:     cfg.Source.MaxFeedBytes,
		KindSegments: kindSegments(cfg.Source.KindSegments),
	}, logger)

	pipeline, err := silverservice.New(silverservice.Config{
		NumWorkers:      cfg.Consumer.NumWorkers,
		MessageTimeout:  cfg.Consumer.MessageTimeout,
		MinTriggerBytes: cfg.Consumer.MinTriggerBytes,
		MaxTriggerBytes: cfg.Consumer.MaxTriggerBytes,
	}, consumer, silverservice.Dependencies{
		Resolver: resolver,
		Decoder:  gtfsrt.NewDecoder(),
		Sink:     sinks,
		Ledger:   led,
		Notifier: notifier,
	}, logger)
	if err != nil {
		return fail(err)
	}

	base := microservice.NewBaseServer(logger, cfg.HTTPPort)
	return silverservice.NewService(base, pipeline, led, notifier), cleanup, nil
}

// buildLedger creates the configured backend, fronted by an LRU for the
// remote ones.
func buildLedger(ctx context.Context, cfg *config.Config, opts []option.ClientOption, logger zerolog.Logger, closers *[]func() error) (ledger.Ledger, error) {
	var backing ledger.Ledger
	switch cfg.Ledger.Backend {
	case "none":
		return ledger.Noop{}, nil
	case "memory":
		return ledger.NewInMemory(), nil
	case "redis":
		r, err := ledger.NewRedis(ctx, &ledger.RedisConfig{
			Addr:      cfg.Ledger.RedisAddr,
			Password:  cfg.Ledger.RedisPassword,
			DB:        cfg.Ledger.RedisDB,
			TTL:       cfg.Ledger.TTL,
			KeyPrefix: cfg.Ledger.RedisKeyPrefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		backing = r
	case "firestore":
		fs, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
		if err != nil {
			return nil, fmt.Errorf("firestore.NewClient: %w", err)
		}
		*closers = append(*closers, fs.Close)
		f, err := ledger.NewFirestore(&ledger.FirestoreConfig{ProjectID: cfg.ProjectID, CollectionName: cfg.Ledger.FirestoreCollection}, fs, logger)
		if err != nil {
			return nil, err
		}
		backing = f
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}

	if cfg.Ledger.LRUSize == 0 {
		return backing, nil
	}
	return ledger.NewLRU(cfg.Ledger.LRUSize, backing)
}

func kindSegments(m map[string]string) map[string]gtfsrt.FeedKind {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]gtfsrt.FeedKind, len(m))
	for seg, kind := range m {
		out[seg] = gtfsrt.FeedKind(kind)
	}
	return out
}
