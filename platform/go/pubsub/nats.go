package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type envelope[T any] struct {
	Origin  string `json:"origin"`
	Payload T      `json:"payload"`
}

// Bridge mirrors a Topic onto a NATS subject. Local publishes are forwarded to
// NATS; messages from other processes are republished locally. Each bridge
// tags outgoing messages with its origin id and drops its own echoes.
type Bridge[T any] struct {
	nc      *nats.Conn
	subject string
	origin  string
	topic   *Topic[T]
	logger  *zap.Logger

	sub        *nats.Subscription
	unsubLocal func()
}

type bridgedKey struct{}

// Connect dials NATS at url.
func Connect(url string, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("igreja-api"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	logger.Info("nats connected", zap.String("url", url))
	return nc, nil
}

// NewBridge starts forwarding between topic and subject.
func NewBridge[T any](nc *nats.Conn, subject string, topic *Topic[T], logger *zap.Logger) (*Bridge[T], error) {
	if nc == nil {
		return nil, fmt.Errorf("nats connection is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Bridge[T]{
		nc:      nc,
		subject: subject,
		origin:  uuid.NewString(),
		topic:   topic,
		logger:  logger.With(zap.String("subject", subject)),
	}

	sub, err := nc.Subscribe(subject, b.receive)
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", subject, err)
	}
	b.sub = sub
	b.unsubLocal = topic.Subscribe(b.forward)

	return b, nil
}

func (b *Bridge[T]) forward(ctx context.Context, v T) {
	if origin, _ := ctx.Value(bridgedKey{}).(string); origin == b.origin {
		return
	}
	data, err := json.Marshal(envelope[T]{Origin: b.origin, Payload: v})
	if err != nil {
		b.logger.Error("encode bridged message", zap.Error(err))
		return
	}
	if err := b.nc.Publish(b.subject, data); err != nil {
		b.logger.Warn("nats publish failed", zap.Error(err))
	}
}

func (b *Bridge[T]) receive(msg *nats.Msg) {
	var env envelope[T]
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		b.logger.Warn("drop malformed bridged message", zap.Error(err))
		return
	}
	if env.Origin == b.origin {
		return
	}

	ctx := context.WithValue(context.Background(), bridgedKey{}, b.origin)
	b.topic.Publish(ctx, env.Payload)
}

// Close stops forwarding in both directions. The connection is left open.
func (b *Bridge[T]) Close() error {
	b.unsubLocal()
	if b.sub != nil {
		return b.sub.Unsubscribe()
	}
	return nil
}
