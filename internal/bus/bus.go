// Package bus carries scan requests and analysis events between Mizan
// instances: in-process channels for a single node, NATS across nodes.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-food/mizan/internal/domain"
)

// ReplyToKey is the message metadata key naming the topic a responder
// publishes its answer to.
const ReplyToKey = "reply_to"

// DefaultRequestTimeout bounds Request when the context has no deadline.
const DefaultRequestTimeout = 30 * time.Second

var (
	_ domain.EventBus        = (*ChannelBus)(nil)
	_ domain.EventBus        = (*NATSBus)(nil)
	_ domain.QueueSubscriber = (*ChannelBus)(nil)
	_ domain.QueueSubscriber = (*NATSBus)(nil)
)

var tracer = otel.Tracer("mizan-bus")

// New creates the event bus named by cfg.Type ("channel" or "nats").
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil
	case "nats":
		return NewNATSBus(cfg)
	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

// Subscribe joins queue when the bus supports queue groups and queue is set,
// and falls back to a plain subscription otherwise.
func Subscribe(ctx context.Context, b domain.EventBus, topic, queue string, handler domain.MessageHandler) (domain.Subscription, error) {
	if qs, ok := b.(domain.QueueSubscriber); ok && queue != "" {
		return qs.QueueSubscribe(ctx, topic, queue, handler)
	}
	return b.Subscribe(ctx, topic, handler)
}

// Respond publishes payload to the reply topic of a request message.
// It is a no-op for messages that expect no reply.
func Respond(ctx context.Context, b domain.EventBus, msg *domain.Message, payload []byte) error {
	replyTo := msg.Metadata[ReplyToKey]
	if replyTo == "" {
		return nil
	}
	return b.Publish(ctx, replyTo, payload)
}

// newMessage builds an envelope and injects the trace context of ctx into
// its metadata.
func newMessage(ctx context.Context, topic string, payload []byte, metadata map[string]string) *domain.Message {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(metadata))
	return &domain.Message{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   payload,
		Metadata:  metadata,
		Timestamp: time.Now().UnixNano(),
	}
}

// deliver runs handler in a consumer span linked to the publisher's trace.
func deliver(ctx context.Context, msg *domain.Message, handler domain.MessageHandler) error {
	if msg.Metadata != nil {
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Metadata))
	}
	ctx, span := tracer.Start(ctx, "consume "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.String("messaging.message.id", msg.ID),
		),
	)
	defer span.End()

	err := handler(ctx, msg)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func replyTopic(topic string) string {
	return topic + ".reply." + uuid.NewString()
}

func requestTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline)
	}
	return DefaultRequestTimeout
}
