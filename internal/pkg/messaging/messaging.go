package messaging

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrHandlerRequired is returned when Consume is called with a nil handler.
var ErrHandlerRequired = errors.New("messaging: handler is required")

// Messaging publishes and consumes messages on named subjects.
type Messaging interface {
	io.Closer

	Publisher
	Consumer
}

// Publisher publishes messages to a destination (topic/subject).
type Publisher interface {
	Publish(ctx context.Context, destination string, msg OutgoingMessage) error
}

// Consumer consumes messages from a source.
type Consumer interface {
	// Consume blocks until ctx is done or the underlying subscription fails.
	// Use WithReady to learn when the subscription is established.
	Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error
}

// Handler processes a received message. Errors are logged by the driver;
// messages are acknowledged regardless since subjects carry latest-wins data.
type Handler func(ctx context.Context, msg Message) error

// OutgoingMessage is a message to be published.
type OutgoingMessage struct {
	Body []byte

	// Key is used by Kafka for partitioning and as ordering key on Pub/Sub.
	Key []byte

	// Headers are dropped by drivers without header support (NSQ).
	Headers map[string]string
}

// Message is a received message.
type Message struct {
	Body       []byte
	Headers    map[string]string
	Source     string
	ID         string
	ReceivedAt time.Time
}

// Header returns the header value for key or an empty string.
func (m Message) Header(key string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[key]
}
