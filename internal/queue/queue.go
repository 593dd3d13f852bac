package queue

import "context"

const (
	// WorkQueue carries delivery attempt hand-offs from the dispatcher and
	// the retry scanner to the workers.
	WorkQueue = "webhook.deliveries"

	// DLQ receives messages the consumer rejects as malformed.
	DLQ = "dlq.webhook.deliveries"

	dlxRoutingKey = "webhook.deliveries"
)

// Publisher publishes delivery messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg DeliveryMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg DeliveryMessage) error

// Consumer consumes delivery messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}
