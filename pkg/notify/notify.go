// Package notify announces newly written silver data on a Pub/Sub topic so
// downstream jobs can react without listing buckets.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// Notice describes one persisted snapshot.
type Notice struct {
	Source      string    `json:"source"`
	Kind        string    `json:"kind"`
	Partition   string    `json:"partition"`
	Objects     []string  `json:"objects"`
	Rows        int       `json:"rows"`
	SnapshotUTC time.Time `json:"snapshot_utc"`
}

// Notifier publishes notices.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
	Stop(ctx context.Context) error
}

// Noop discards notices.
type Noop struct{}

func (Noop) Notify(context.Context, Notice) error { return nil }
func (Noop) Stop(context.Context) error           { return nil }

// PubsubNotifierConfig holds configuration for the Pub/Sub notifier.
type PubsubNotifierConfig struct {
	TopicID                    string
	TopicExistsTimeout         time.Duration
	PublishConfirmationTimeout time.Duration
}

// NewPubsubNotifierDefaults returns a config with sensible defaults for topicID.
func NewPubsubNotifierDefaults(topicID string) *PubsubNotifierConfig {
	return &PubsubNotifierConfig{
		TopicID:                    topicID,
		TopicExistsTimeout:         15 * time.Second,
		PublishConfirmationTimeout: 20 * time.Second,
	}
}

// PubsubNotifier publishes each notice as a JSON message and waits for the
// server to confirm it.
type PubsubNotifier struct {
	topic   *pubsub.Topic
	timeout time.Duration
	logger  zerolog.Logger
}

// NewPubsubNotifier validates the topic exists before returning a notifier.
func NewPubsubNotifier(ctx context.Context, cfg *PubsubNotifierConfig, client *pubsub.Client, logger zerolog.Logger) (*PubsubNotifier, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client cannot be nil for notifier")
	}
	topic := client.Topic(cfg.TopicID)

	existsCtx, cancel := context.WithTimeout(ctx, cfg.TopicExistsTimeout)
	defer cancel()
	exists, err := topic.Exists(existsCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for topic %s: %w", cfg.TopicID, err)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub topic %s does not exist", cfg.TopicID)
	}

	logger.Info().Str("topic_id", cfg.TopicID).Msg("PubsubNotifier initialized successfully.")
	return &PubsubNotifier{
		topic:   topic,
		timeout: cfg.PublishConfirmationTimeout,
		logger:  logger.With().Str("component", "PubsubNotifier").Str("topic_id", cfg.TopicID).Logger(),
	}, nil
}

// Notify publishes n and blocks until it is confirmed or the confirmation
// timeout elapses.
func (p *PubsubNotifier) Notify(ctx context.Context, n Notice) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}
	res := p.topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"kind":      n.Kind,
			"partition": n.Partition,
		},
	})

	getCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	id, err := res.Get(getCtx)
	if err != nil {
		return fmt.Errorf("failed to publish notice for %s: %w", n.Source, err)
	}
	p.logger.Debug().Str("source", n.Source).Str("pubsub_msg_id", id).Msg("Notice published.")
	return nil
}

// Stop flushes outstanding publishes, giving up when ctx expires.
func (p *PubsubNotifier) Stop(ctx context.Context) error {
	stopDone := make(chan struct{})
	go func() {
		p.topic.Stop()
		close(stopDone)
	}()
	select {
	case <-stopDone:
		p.logger.Info().Msg("Pub/Sub topic stopped.")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for Pub/Sub topic to flush: %w", ctx.Err())
	}
}
