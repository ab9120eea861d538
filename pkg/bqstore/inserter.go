package bqstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/illmade-knight/gtfsrt-silver/pkg/gtfsrt"
	"github.com/illmade-knight/gtfsrt-silver/pkg/silver"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// BigQueryDatasetConfig names the dataset and per-kind tables rows are streamed to.
type BigQueryDatasetConfig struct {
	DatasetID             string
	TripUpdatesTable      string
	VehiclePositionsTable string
	CredentialsFile       string // Optional: Path to a service account JSON file.
}

// NewProductionBigQueryClient creates a BigQuery client suitable for production environments.
// It will use Application Default Credentials unless a specific credentials file is provided.
func NewProductionBigQueryClient(ctx context.Context, projectID string, credentialsFile string, logger zerolog.Logger) (*bigquery.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
		logger.Info().Str("credentials_file", credentialsFile).Msg("Using specified credentials file for BigQuery client.")
	} else {
		logger.Info().Msg("Using Application Default Credentials (ADC) for BigQuery client.")
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	logger.Info().Str("project_id", projectID).Msg("BigQuery client created successfully.")
	return client, nil
}

// RowPutter is the part of *bigquery.Inserter the sink depends on.
type RowPutter interface {
	Put(ctx context.Context, src interface{}) error
}

type table struct {
	name   string
	putter RowPutter
}

// RowInserter streams batches into one BigQuery table per feed kind.
// It implements silver.Sink.
type RowInserter struct {
	tables map[gtfsrt.FeedKind]table
	logger zerolog.Logger
}

// NewRowInserter connects to the configured tables, creating any that are
// missing with the explicit schema for their kind, partitioned by day on
// snapshot_utc. A kind with an empty table name is not streamed.
func NewRowInserter(ctx context.Context, client *bigquery.Client, cfg *BigQueryDatasetConfig, logger zerolog.Logger) (*RowInserter, error) {
	if client == nil {
		return nil, errors.New("bigquery client cannot be nil")
	}
	if cfg == nil {
		return nil, errors.New("BigQueryDatasetConfig cannot be nil")
	}
	logger = logger.With().Str("component", "BigQueryRowInserter").Str("project_id", client.Project()).Str("dataset_id", cfg.DatasetID).Logger()

	targets := map[gtfsrt.FeedKind]string{
		gtfsrt.TripUpdatesFeed:      cfg.TripUpdatesTable,
		gtfsrt.VehiclePositionsFeed: cfg.VehiclePositionsTable,
	}
	putters := make(map[gtfsrt.FeedKind]NamedPutter)
	for kind, tableID := range targets {
		if tableID == "" {
			continue
		}
		ref := client.Dataset(cfg.DatasetID).Table(tableID)
		if err := ensureTable(ctx, ref, kind, logger); err != nil {
			return nil, err
		}
		putters[kind] = NamedPutter{Name: cfg.DatasetID + "." + tableID, Putter: ref.Inserter()}
	}
	if len(putters) == 0 {
		return nil, errors.New("no BigQuery tables configured")
	}
	return NewRowInserterWithPutters(putters, logger), nil
}

// NamedPutter pairs a putter with the table name reported by Persist.
type NamedPutter struct {
	Name   string
	Putter RowPutter
}

// NewRowInserterWithPutters builds a RowInserter over existing putters. The
// logger is used as given.
func NewRowInserterWithPutters(putters map[gtfsrt.FeedKind]NamedPutter, logger zerolog.Logger) *RowInserter {
	tables := make(map[gtfsrt.FeedKind]table, len(putters))
	for k, p := range putters {
		tables[k] = table{name: p.Name, putter: p.Putter}
	}
	return &RowInserter{tables: tables, logger: logger}
}

func ensureTable(ctx context.Context, ref *bigquery.Table, kind gtfsrt.FeedKind, logger zerolog.Logger) error {
	log := logger.With().Str("table_id", ref.TableID).Logger()
	_, err := ref.Metadata(ctx)
	if err == nil {
		log.Info().Msg("Successfully connected to existing BigQuery table.")
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("failed to get BigQuery table metadata: %w", err)
	}

	log.Warn().Msg("BigQuery table not found. Attempting to create it.")
	schema, err := SchemaFor(kind)
	if err != nil {
		return err
	}
	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "snapshot_utc",
		},
	}
	if err := ref.Create(ctx, meta); err != nil {
		return fmt.Errorf("failed to create BigQuery table %s.%s: %w", ref.DatasetID, ref.TableID, err)
	}
	log.Info().Msg("BigQuery table created successfully.")
	return nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound
	}
	return strings.Contains(err.Error(), "notFound")
}

// Name implements silver.Sink.
func (i *RowInserter) Name() string { return "bigquery" }

// Persist streams the batch rows to the table for the batch kind. Insert IDs
// are name-based UUIDs of the source and row index, so a redelivered batch is
// deduplicated by BigQuery on a best-effort basis.
func (i *RowInserter) Persist(ctx context.Context, batch *silver.Batch) ([]string, error) {
	if batch == nil || batch.Len() == 0 {
		return nil, nil
	}
	t, ok := i.tables[batch.Kind()]
	if !ok {
		i.logger.Debug().Str("kind", string(batch.Kind())).Msg("No BigQuery table for feed kind, skipping.")
		return nil, nil
	}

	savers := Savers(batch)
	if err := t.putter.Put(ctx, savers); err != nil {
		var multiErr bigquery.PutMultiError
		if errors.As(err, &multiErr) {
			for _, rowErr := range multiErr {
				i.logger.Error().
					Int("row_index", rowErr.RowIndex).
					Msgf("BigQuery insert error for row: %v", rowErr.Errors)
			}
		}
		return nil, fmt.Errorf("bigquery Inserter.Put into %s failed: %w", t.name, err)
	}

	i.logger.Debug().Str("table", t.name).Int("batch_size", len(savers)).Msg("Successfully inserted batch into BigQuery.")
	return []string{t.name}, nil
}

// Savers wraps each row of batch as a bigquery.ValueSaver.
func Savers(batch *silver.Batch) []bigquery.ValueSaver {
	savers := make([]bigquery.ValueSaver, 0, batch.Len())
	id := func(i int) string {
		return uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "%s#%s#%d", batch.Source, batch.Kind(), i)).String()
	}
	for n, r := range batch.Rows.TripUpdates {
		savers = append(savers, tripUpdateSaver{row: r, dt: batch.Partition, insertID: id(n)})
	}
	for n, r := range batch.Rows.VehiclePositions {
		savers = append(savers, vehiclePositionSaver{row: r, dt: batch.Partition, insertID: id(n)})
	}
	return savers
}
