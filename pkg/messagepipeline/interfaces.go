package messagepipeline

import (
	"context"
)

// --- Stage 1: Consumer ---

// MessageConsumer defines the interface for a message source such as a Pub/Sub
// subscription receiving storage notifications.
type MessageConsumer interface {
	// Messages returns a read-only channel from which pipeline workers receive messages.
	Messages() <-chan Message
	// Start begins the consumption process.
	Start(ctx context.Context) error
	// Stop gracefully ceases message consumption and waits for background tasks to finish.
	Stop(ctx context.Context) error
	// Done returns a channel that is closed when the consumer has completely shut down.
	Done() <-chan struct{}
}

// --- Stage 2: Transformer ---

// MessageTransformer turns a generic Message into a structured payload of type T.
//
// Returning skip=true acknowledges the message without processing it further.
// Returning an error Nacks it.
type MessageTransformer[T any] func(ctx context.Context, msg *Message) (payload *T, skip bool, err error)

// --- Stage 3: Processor ---

// StreamProcessor handles transformed payloads one by one. An error Nacks the
// original message; success Acks it.
type StreamProcessor[T any] func(ctx context.Context, original Message, payload *T) error
