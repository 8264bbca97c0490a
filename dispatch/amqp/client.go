package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LerianStudio/lib-dispatch/dispatch/internal/nilcheck"
	"github.com/LerianStudio/lib-dispatch/dispatch/log"
	"github.com/LerianStudio/lib-dispatch/dispatch/message"
	"github.com/LerianStudio/lib-dispatch/dispatch/publisher"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	ErrChannelRequired   = errors.New("amqp channel is required")
	ErrExchangeRequired  = errors.New("amqp exchange is required")
	ErrPublishNacked     = errors.New("amqp broker nacked the publish")
	ErrConfirmTimeout    = errors.New("timed out waiting for amqp publish confirmation")
	ErrConfirmOutOfOrder = errors.New("amqp confirmation stream out of order")
)

// DefaultConfirmTimeout bounds how long Publish waits for the broker to
// confirm a message.
const DefaultConfirmTimeout = 5 * time.Second

// Channel is the slice of *amqp091.Channel the client needs. Narrowed to an
// interface so tests can run against a fake broker.
type Channel interface {
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Client publishes messages to a RabbitMQ exchange in confirm mode and
// satisfies publisher.Client. The message subject is used as the routing key.
//
// Confirm mode delivers acks in publish order on a single channel, so Publish
// serializes publishes; the dispatcher's single worker never contends on the
// lock in practice.
type Client struct {
	channel  Channel
	exchange string
	logger   log.Logger

	confirmTimeout time.Duration

	// publishMu also guards publishSeq, which mirrors the delivery tags the
	// broker assigns on this channel (1, 2, 3, ...). Confirmations are
	// matched against it so an entry abandoned by a timed-out publish can
	// never be attributed to a later one.
	publishMu  sync.Mutex
	confirms   chan amqp.Confirmation
	publishSeq uint64
}

// Option customizes client construction.
type Option func(*Client)

// WithConfirmTimeout bounds the wait for a broker confirmation.
func WithConfirmTimeout(timeout time.Duration) Option {
	return func(client *Client) {
		if timeout > 0 {
			client.confirmTimeout = timeout
		}
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger log.Logger) Option {
	return func(client *Client) {
		if !nilcheck.Interface(logger) {
			client.logger = logger
		}
	}
}

// NewClient puts channel into confirm mode and returns a client publishing to
// exchange.
func NewClient(channel Channel, exchange string, opts ...Option) (*Client, error) {
	if nilcheck.Interface(channel) {
		return nil, ErrChannelRequired
	}

	if exchange == "" {
		return nil, ErrExchangeRequired
	}

	if err := channel.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable amqp confirm mode: %w", err)
	}

	client := &Client{
		channel:        channel,
		exchange:       exchange,
		logger:         log.NewNop(),
		confirmTimeout: DefaultConfirmTimeout,
		confirms:       channel.NotifyPublish(make(chan amqp.Confirmation, 1)),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// Publish sends one message to the exchange and waits for the broker
// confirmation. The returned receipt id combines the generated message id
// with the broker delivery tag. Credentials on the request are ignored: AMQP
// authenticates at the connection level.
func (client *Client) Publish(ctx context.Context, req publisher.Request) (string, error) {
	headers, err := headersFromAttributes(req.Attributes)
	if err != nil {
		return "", err
	}

	client.publishMu.Lock()
	defer client.publishMu.Unlock()

	messageID := uuid.New().String()

	publishing := amqp.Publishing{
		ContentType:  "text/plain",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Type:         req.Subject,
		Headers:      headers,
		Body:         []byte(req.Body),
	}

	if err := client.channel.PublishWithContext(ctx, client.exchange, req.Subject, false, false, publishing); err != nil {
		return "", fmt.Errorf("amqp publish: %w", err)
	}

	client.publishSeq++

	confirm, err := client.waitForConfirm(ctx, client.publishSeq)
	if err != nil {
		return "", err
	}

	if !confirm.Ack {
		return "", fmt.Errorf("%w: delivery tag %d", ErrPublishNacked, confirm.DeliveryTag)
	}

	client.logger.Log(ctx, log.LevelDebug, "amqp publish confirmed",
		log.String("message_id", messageID),
		log.String("routing_key", req.Subject),
	)

	return fmt.Sprintf("%s:%d", messageID, confirm.DeliveryTag), nil
}

// Close releases the underlying channel.
func (client *Client) Close() error {
	return client.channel.Close()
}

// waitForConfirm waits for the confirmation carrying expectedTag. A timed-out
// or cancelled publish leaves its confirmation pending in the stream; such
// stale entries are consumed and dropped here instead of being reported as
// the current publish's outcome.
func (client *Client) waitForConfirm(ctx context.Context, expectedTag uint64) (amqp.Confirmation, error) {
	timer := time.NewTimer(client.confirmTimeout)
	defer timer.Stop()

	for {
		select {
		case confirm, ok := <-client.confirms:
			if !ok {
				return amqp.Confirmation{}, fmt.Errorf("%w: confirmation channel closed", ErrPublishNacked)
			}

			if confirm.DeliveryTag < expectedTag {
				client.logger.Log(ctx, log.LevelWarn, "discarding stale amqp confirmation",
					log.String("exchange", client.exchange),
					log.Any("delivery_tag", confirm.DeliveryTag),
					log.Any("expected_tag", expectedTag),
				)

				continue
			}

			if confirm.DeliveryTag > expectedTag {
				return amqp.Confirmation{}, fmt.Errorf("%w: expected delivery tag %d, got %d",
					ErrConfirmOutOfOrder, expectedTag, confirm.DeliveryTag)
			}

			return confirm, nil
		case <-ctx.Done():
			return amqp.Confirmation{}, fmt.Errorf("await amqp confirmation: %w", ctx.Err())
		case <-timer.C:
			return amqp.Confirmation{}, ErrConfirmTimeout
		}
	}
}

// headersFromAttributes translates message attributes into an AMQP header
// table. Unknown kinds fail the publish rather than being silently dropped.
func headersFromAttributes(attributes []message.Attribute) (amqp.Table, error) {
	if len(attributes) == 0 {
		return nil, nil
	}

	headers := make(amqp.Table, len(attributes))

	for _, attr := range attributes {
		switch attr.Value.Kind {
		case message.KindString:
			headers[attr.Key] = attr.Value.Text
		case message.KindNumber:
			headers[attr.Key] = attr.Value.Number.String()
		case message.KindBinary:
			headers[attr.Key] = attr.Value.Binary
		default:
			return nil, fmt.Errorf("%w: attribute %q kind %d", message.ErrUnknownAttributeKind, attr.Key, attr.Value.Kind)
		}
	}

	return headers, nil
}
