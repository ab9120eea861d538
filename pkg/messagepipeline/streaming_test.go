package messagepipeline_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/illmade-knight/gtfsrt-silver/pkg/messagepipeline"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test Payload & Mocks ---

type streamTestPayload struct {
	Data string
}

// newTestStreamingService is a helper to create a StreamingService with mocks for testing.
func newTestStreamingService(
	t *testing.T,
	cfg messagepipeline.StreamingServiceConfig,
	processor messagepipeline.StreamProcessor[streamTestPayload],
) (*messagepipeline.StreamingService[streamTestPayload], *MockMessageConsumer) {
	consumer := NewMockMessageConsumer(10)
	t.Cleanup(func() {
		// Ensure channel is closed to avoid test hangs if Stop isn't called.
		consumer.Close()
	})

	transformer := func(ctx context.Context, msg *messagepipeline.Message) (*streamTestPayload, bool, error) {
		if string(msg.Payload) == "skip" {
			return nil, true, nil
		}
		if string(msg.Payload) == "transform_error" {
			return nil, false, errors.New("transformation failed")
		}
		return &streamTestPayload{Data: string(msg.Payload)}, false, nil
	}

	service, err := messagepipeline.NewStreamingService[streamTestPayload](cfg, consumer, transformer, processor, zerolog.Nop())
	require.NoError(t, err)
	return service, consumer
}

// --- Test Cases ---

func TestStreamingService_Lifecycle(t *testing.T) {
	// Arrange
	var processorCalled atomic.Int32
	processor := func(ctx context.Context, original messagepipeline.Message, payload *streamTestPayload) error {
		processorCalled.Add(1)
		return nil
	}

	service, consumer := newTestStreamingService(t, messagepipeline.StreamingServiceConfig{NumWorkers: 1}, processor)

	serviceCtx, serviceCancel := context.WithCancel(context.Background())
	defer serviceCancel()

	// Act
	err := service.Start(serviceCtx)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 1, consumer.GetStartCount())

	// Act
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	err = service.Stop(stopCtx)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 1, consumer.GetStopCount())
}

func TestStreamingService_ProcessMessage_Success(t *testing.T) {
	// Arrange
	var processorCalled atomic.Int32
	var receivedPayload *streamTestPayload
	var mu sync.Mutex

	processor := func(ctx context.Context, original messagepipeline.Message, payload *streamTestPayload) error {
		mu.Lock()
		receivedPayload = payload
		mu.Unlock()
		processorCalled.Add(1)
		return nil
	}

	service, consumer := newTestStreamingService(t, messagepipeline.StreamingServiceConfig{NumWorkers: 1}, processor)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := service.Start(ctx)
	require.NoError(t, err)

	var ackCalled atomic.Bool
	msg := messagepipeline.Message{
		MessageData: messagepipeline.MessageData{
			ID:      "test-msg-1",
			Payload: []byte("original"),
		},
		Ack:  func() { ackCalled.Store(true) },
		Nack: func() { t.Error("Nack was called unexpectedly") },
	}

	// Act
	consumer.Push(msg)

	// Assert
	require.Eventually(t, func() bool {
		return processorCalled.Load() == 1
	}, time.Second, 10*time.Millisecond, "Processor was not called in time")

	mu.Lock()
	assert.Equal(t, "original", receivedPayload.Data)
	mu.Unlock()

	require.Eventually(t, ackCalled.Load, time.Second, 10*time.Millisecond, "Ack was not called")
}

func TestStreamingService_ProcessMessage_TransformerError(t *testing.T) {
	// Arrange
	processor := func(ctx context.Context, original messagepipeline.Message, payload *streamTestPayload) error {
		t.Error("Processor should not be called when transformer fails")
		return nil
	}

	service, consumer := newTestStreamingService(t, messagepipeline.StreamingServiceConfig{NumWorkers: 1}, processor)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := service.Start(ctx)
	require.NoError(t, err)

	var nackCalled atomic.Bool
	msg := messagepipeline.Message{
		MessageData: messagepipeline.MessageData{ID: "test-msg-err", Payload: []byte("transform_error")},
		Ack:         func() { t.Error("Ack was called unexpectedly") },
		Nack:        func() { nackCalled.Store(true) },
	}

	// Act
	consumer.Push(msg)

	// Assert
	require.Eventually(t, nackCalled.Load, time.Second, 10*time.Millisecond, "Nack was not called on transformer error")
}

func TestStreamingService_ProcessMessage_Skip(t *testing.T) {
	// Arrange
	processor := func(ctx context.Context, original messagepipeline.Message, payload *streamTestPayload) error {
		t.Error("Processor should not be called for a skipped message")
		return nil
	}

	service, consumer := newTestStreamingService(t, messagepipeline.StreamingServiceConfig{NumWorkers: 1}, processor)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := service.Start(ctx)
	require.NoError(t, err)

	var ackCalled atomic.Bool
	msg := messagepipeline.Message{
		MessageData: messagepipeline.MessageData{ID: "test-msg-skip", Payload: []byte("skip")},
		Ack:         func() { ackCalled.Store(true) },
		Nack:        func() { t.Error("Nack was called unexpectedly") },
	}

	// Act
	consumer.Push(msg)

	// Assert
	require.Eventually(t, ackCalled.Load, time.Second, 10*time.Millisecond, "Ack was not called on skip")
}

func TestStreamingService_ProcessMessage_ProcessorError(t *testing.T) {
	// Arrange
	processor := func(ctx context.Context, original messagepipeline.Message, payload *streamTestPayload) error {
		return errors.New("processing failed")
	}

	service, consumer := newTestStreamingService(t, messagepipeline.StreamingServiceConfig{NumWorkers: 1}, processor)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := service.Start(ctx)
	require.NoError(t, err)

	var nackCalled atomic.Bool
	msg := messagepipeline.Message{
		MessageData: messagepipeline.MessageData{ID: "test-msg-proc-err", Payload: []byte("process_me")},
		Ack:         func() { t.Error("Ack was called unexpectedly") },
		Nack:        func() { nackCalled.Store(true) },
	}

	// Act
	consumer.Push(msg)

	// Assert
	require.Eventually(t, nackCalled.Load, time.Second, 10*time.Millisecond, "Nack was not called on processor error")
}

func TestStreamingService_MessageTimeout(t *testing.T) {
	// Arrange
	processor := func(ctx context.Context, original messagepipeline.Message, payload *streamTestPayload) error {
		<-ctx.Done()
		return ctx.Err()
	}

	cfg := messagepipeline.StreamingServiceConfig{NumWorkers: 1, MessageTimeout: 20 * time.Millisecond}
	service, consumer := newTestStreamingService(t, cfg, processor)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, service.Start(ctx))

	var nackCalled atomic.Bool
	msg := messagepipeline.Message{
		MessageData: messagepipeline.MessageData{ID: "test-msg-slow", Payload: []byte("slow")},
		Ack:         func() { t.Error("Ack was called unexpectedly") },
		Nack:        func() { nackCalled.Store(true) },
	}

	// Act
	consumer.Push(msg)

	// Assert
	require.Eventually(t, nackCalled.Load, time.Second, 10*time.Millisecond, "Nack was not called after the message deadline")
}

func TestStreamingService_AttributesReachTransformer(t *testing.T) {
	// Arrange
	consumer := NewMockMessageConsumer(1)
	t.Cleanup(consumer.Close)

	seen := make(chan string, 1)
	transformer := func(ctx context.Context, msg *messagepipeline.Message) (*streamTestPayload, bool, error) {
		seen <- msg.Attribute("objectId")
		return nil, true, nil
	}
	processor := func(ctx context.Context, original messagepipeline.Message, payload *streamTestPayload) error {
		return nil
	}
	service, err := messagepipeline.NewStreamingService[streamTestPayload](messagepipeline.StreamingServiceConfig{}, consumer, transformer, processor, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, service.Start(ctx))

	// Act: no Ack/Nack handles set, settling must not panic.
	consumer.Push(messagepipeline.Message{
		MessageData: messagepipeline.MessageData{ID: "attr"},
		Attributes:  map[string]string{"objectId": "raw/tripupdates/dt=2024-05-01/a.pb"},
	})

	// Assert
	select {
	case got := <-seen:
		assert.Equal(t, "raw/tripupdates/dt=2024-05-01/a.pb", got)
	case <-ctx.Done():
		t.Fatal("transformer was not called")
	}
}

func TestNewStreamingService_Validation(t *testing.T) {
	consumer := NewMockMessageConsumer(1)
	transformer := func(ctx context.Context, msg *messagepipeline.Message) (*streamTestPayload, bool, error) {
		return nil, true, nil
	}
	processor := func(ctx context.Context, original messagepipeline.Message, payload *streamTestPayload) error {
		return nil
	}

	_, err := messagepipeline.NewStreamingService[streamTestPayload](messagepipeline.StreamingServiceConfig{}, nil, transformer, processor, zerolog.Nop())
	assert.Error(t, err)
	_, err = messagepipeline.NewStreamingService[streamTestPayload](messagepipeline.StreamingServiceConfig{}, consumer, nil, processor, zerolog.Nop())
	assert.Error(t, err)
	_, err = messagepipeline.NewStreamingService[streamTestPayload](messagepipeline.StreamingServiceConfig{}, consumer, transformer, nil, zerolog.Nop())
	assert.Error(t, err)
}
