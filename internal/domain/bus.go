package domain

import (
	"context"
)

// Topics of the scan pipeline.
const (
	TopicProductScanned    = "mizan.product.scanned"
	TopicAnalysisCompleted = "mizan.analysis.completed"
	TopicAlert             = "mizan.alert"
)

// EventBus moves scan requests and analysis results between the API and
// the workers, in process over channels or across nodes over NATS.
type EventBus interface {
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe delivers every message on topic to handler until the
	// subscription or ctx ends.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Request publishes payload and returns the first reply.
	Request(ctx context.Context, topic string, payload []byte) ([]byte, error)

	Ping(ctx context.Context) error
	Close() error
}

// QueueSubscriber is implemented by buses that can load-balance a topic
// across the members of a named queue group. Each message reaches exactly
// one member of every group.
type QueueSubscriber interface {
	QueueSubscribe(ctx context.Context, topic, queue string, handler MessageHandler) (Subscription, error)
}

type MessageHandler func(ctx context.Context, msg *Message) error

// Message is the envelope every bus carries. Metadata holds the reply
// topic of a request and the W3C trace context of the publisher.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"` // unix nanoseconds
}

type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBusConfig selects and tunes the bus.
type EventBusConfig struct {
	// Type is "channel" or "nats".
	Type string `yaml:"type"`

	// ChannelBufferSize is the per-subscription queue of the channel bus.
	ChannelBufferSize int `yaml:"channelBufferSize"`

	NATSUrl           string `yaml:"natsUrl"`
	NATSToken         string `yaml:"natsToken"`
	NATSMaxReconnects int    `yaml:"natsMaxReconnects"`
	NATSReconnectWait int    `yaml:"natsReconnectWait"` // seconds
}
