package messagepipeline

import (
	"time"
)

// Message is the canonical, internal representation of a trigger flowing
// through the pipeline. It carries the broker payload, its metadata, and the
// acknowledgment handles.
type Message struct {
	// MessageData contains the payload and identity of the message.
	MessageData

	// Attributes holds metadata from the message broker. For storage
	// notifications these name the bucket and object that triggered the message.
	Attributes map[string]string

	// Ack signals that processing was successful and the message can be
	// permanently removed from the source.
	Ack func()

	// Nack signals that processing has failed and the message should be
	// redelivered or dead-lettered by the broker.
	Nack func()
}

// MessageData holds the essential payload of a message.
type MessageData struct {
	// ID is the unique identifier for the message from the source broker.
	ID string `json:"id"`

	// Payload is the raw byte content of the message.
	Payload []byte `json:"payload"`

	// PublishTime is the timestamp when the message was originally published.
	PublishTime time.Time `json:"publishTime"`
}

// Attribute returns the named attribute, or "" if absent.
func (m *Message) Attribute(key string) string {
	if m.Attributes == nil {
		return ""
	}
	return m.Attributes[key]
}

// ack and nack tolerate messages built without handles, as in tests.
func (m *Message) ack() {
	if m.Ack != nil {
		m.Ack()
	}
}

func (m *Message) nack() {
	if m.Nack != nil {
		m.Nack()
	}
}
