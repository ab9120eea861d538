package messagepipeline

import (
	"context"

	"github.com/rs/zerolog"
)

// WithPayloadValidation wraps a transformer so that messages whose payload
// length falls outside [minSize, maxSize] are skipped before it runs.
// A maxSize of zero disables the upper bound.
func WithPayloadValidation[T any](
	inner MessageTransformer[T],
	minSize int,
	maxSize int,
	logger zerolog.Logger,
) MessageTransformer[T] {
	return WithPayloadValidationFor(inner, minSize, maxSize, nil, logger)
}

// WithPayloadValidationFor is WithPayloadValidation restricted to the
// messages for which applies returns true. Other messages pass straight
// through. A nil applies checks every message.
func WithPayloadValidationFor[T any](
	inner MessageTransformer[T],
	minSize int,
	maxSize int,
	applies func(*Message) bool,
	logger zerolog.Logger,
) MessageTransformer[T] {
	return func(ctx context.Context, msg *Message) (*T, bool, error) {
		if applies != nil && !applies(msg) {
			return inner(ctx, msg)
		}
		n := len(msg.Payload)
		if n < minSize || (maxSize > 0 && n > maxSize) {
			logger.Warn().Str("msg_id", msg.ID).Int("payload_size", n).
				Int("min_size", minSize).Int("max_size", maxSize).
				Msg("Rejecting message due to invalid payload size.")
			return nil, true, nil
		}
		return inner(ctx, msg)
	}
}
