// Package config loads the service configuration from YAML, applies
// GTFSRT_* environment overrides and validates the result.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ConsumerConfig configures the trigger subscription and worker pool.
type ConsumerConfig struct {
	SubscriptionID         string        `yaml:"subscription_id" validate:"required"`
	NumWorkers             int           `yaml:"num_workers" validate:"gt=0"`
	MaxOutstandingMessages int           `yaml:"max_outstanding_messages" validate:"gt=0"`
	MessageTimeout         time.Duration `yaml:"message_timeout" validate:"gte=0"`
	// Bounds on storage notification bodies. Inline feeds are bounded by
	// Source.MaxFeedBytes instead. MaxTriggerBytes of zero is unbounded.
	MinTriggerBytes int `yaml:"min_trigger_bytes" validate:"gte=0"`
	MaxTriggerBytes int `yaml:"max_trigger_bytes" validate:"gte=0"`
}

// SourceConfig configures how feed bytes are located and bounded.
type SourceConfig struct {
	MaxFeedBytes int64 `yaml:"max_feed_bytes" validate:"gte=0"`
	// KindSegments maps a path segment to a feed kind name.
	KindSegments map[string]string `yaml:"kind_segments" validate:"dive,keys,required,endkeys,oneof=tripupdates vehiclepositions"`
}

// SilverConfig configures the Parquet sink.
type SilverConfig struct {
	Bucket string `yaml:"bucket" validate:"required"`
	Prefix string `yaml:"prefix"`
}

// BigQueryConfig configures the optional BigQuery sink.
type BigQueryConfig struct {
	Enabled               bool   `yaml:"enabled"`
	DatasetID             string `yaml:"dataset_id" validate:"required_if=Enabled true"`
	TripUpdatesTable      string `yaml:"trip_updates_table"`
	VehiclePositionsTable string `yaml:"vehicle_positions_table"`
}

// LedgerConfig selects the processed-source ledger backend.
type LedgerConfig struct {
	Backend             string        `yaml:"backend" validate:"oneof=none memory redis firestore"`
	LRUSize             int           `yaml:"lru_size" validate:"gte=0"`
	TTL                 time.Duration `yaml:"ttl" validate:"gte=0"`
	RedisAddr           string        `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword       string        `yaml:"redis_password"`
	RedisDB             int           `yaml:"redis_db" validate:"gte=0"`
	RedisKeyPrefix      string        `yaml:"redis_key_prefix"`
	FirestoreCollection string        `yaml:"firestore_collection" validate:"required_if=Backend firestore"`
}

// NotifyConfig configures completion notices. An empty topic disables them.
type NotifyConfig struct {
	TopicID string `yaml:"topic_id"`
}

// Config is the root configuration of the service.
type Config struct {
	LogLevel        string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
	LogFormat       string `yaml:"log_format" validate:"omitempty,oneof=json console"`
	HTTPPort        string `yaml:"http_port" validate:"required"`
	ProjectID       string `yaml:"project_id" validate:"required"`
	CredentialsFile string `yaml:"credentials_file"`

	Consumer ConsumerConfig `yaml:"consumer"`
	Source   SourceConfig   `yaml:"source"`
	Silver   SilverConfig   `yaml:"silver"`
	BigQuery BigQueryConfig `yaml:"bigquery"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// Default returns a configuration with every optional value filled in.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "json",
		HTTPPort:  ":8080",
		Consumer: ConsumerConfig{
			NumWorkers:             4,
			MaxOutstandingMessages: 100,
			MessageTimeout:         2 * time.Minute,
			MaxTriggerBytes:        64 << 10,
		},
		Source: SourceConfig{
			MaxFeedBytes: 64 << 20,
		},
		Silver: SilverConfig{
			Prefix: "clean/gtfsrt",
		},
		BigQuery: BigQueryConfig{
			TripUpdatesTable:      "trip_updates",
			VehiclePositionsTable: "vehicle_positions",
		},
		Ledger: LedgerConfig{
			Backend:        "memory",
			LRUSize:        10000,
			TTL:            72 * time.Hour,
			RedisKeyPrefix: "gtfsrt-silver:",
		},
	}
}

// Load reads path (if not empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides cfg from GTFSRT_* variables.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"GTFSRT_LOG_LEVEL":            &cfg.LogLevel,
		"GTFSRT_LOG_FORMAT":           &cfg.LogFormat,
		"GTFSRT_HTTP_PORT":            &cfg.HTTPPort,
		"GTFSRT_PROJECT_ID":           &cfg.ProjectID,
		"GTFSRT_CREDENTIALS_FILE":     &cfg.CredentialsFile,
		"GTFSRT_SUBSCRIPTION_ID":      &cfg.Consumer.SubscriptionID,
		"GTFSRT_SILVER_BUCKET":        &cfg.Silver.Bucket,
		"GTFSRT_SILVER_PREFIX":        &cfg.Silver.Prefix,
		"GTFSRT_BQ_DATASET_ID":        &cfg.BigQuery.DatasetID,
		"GTFSRT_LEDGER_BACKEND":       &cfg.Ledger.Backend,
		"GTFSRT_REDIS_ADDR":           &cfg.Ledger.RedisAddr,
		"GTFSRT_REDIS_PASSWORD":       &cfg.Ledger.RedisPassword,
		"GTFSRT_FIRESTORE_COLLECTION": &cfg.Ledger.FirestoreCollection,
		"GTFSRT_NOTIFY_TOPIC_ID":      &cfg.Notify.TopicID,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"GTFSRT_NUM_WORKERS": &cfg.Consumer.NumWorkers,
		"GTFSRT_REDIS_DB":    &cfg.Ledger.RedisDB,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = n
		}
	}

	if v, ok := lookup("GTFSRT_MAX_FEED_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid GTFSRT_MAX_FEED_BYTES: %w", err)
		}
		cfg.Source.MaxFeedBytes = n
	}
	if v, ok := lookup("GTFSRT_BQ_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid GTFSRT_BQ_ENABLED: %w", err)
		}
		cfg.BigQuery.Enabled = b
	}

	durs := map[string]*time.Duration{
		"GTFSRT_MESSAGE_TIMEOUT": &cfg.Consumer.MessageTimeout,
		"GTFSRT_LEDGER_TTL":      &cfg.Ledger.TTL,
	}
	for key, dst := range durs {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
	}
	return nil
}
