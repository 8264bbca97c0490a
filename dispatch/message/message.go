package message

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSubjectRequired = errors.New("message subject is required")
	ErrMessageRequired = errors.New("message is required")
)

// Message is one outbound notification awaiting delivery.
//
// Every field except RetryCount and LastRetryAt is set once at creation and
// never mutated afterwards. A message is owned exclusively by whichever
// component currently holds it (producer until enqueued, queue until
// dequeued, dispatcher thereafter), so no field needs synchronization.
type Message struct {
	ID            uuid.UUID
	Subject       string
	Body          string
	Attributes    []Attribute
	CorrelationID string
	EntityType    string
	EntityID      string
	CreatedAt     time.Time

	// RetryCount and LastRetryAt are mutated only by the dispatcher's retry
	// loop, via MarkAttemptFailed.
	RetryCount  int
	LastRetryAt *time.Time
}

// Option customizes message construction.
type Option func(*Message)

// WithAttributes attaches metadata attributes in the given order.
func WithAttributes(attributes ...Attribute) Option {
	return func(msg *Message) {
		msg.Attributes = attributes
	}
}

// WithCorrelationID propagates a correlation id from the originating request.
// When absent a fresh one is generated.
func WithCorrelationID(correlationID string) Option {
	return func(msg *Message) {
		msg.CorrelationID = strings.TrimSpace(correlationID)
	}
}

// WithEntity links the message to the domain object that produced it, for
// diagnostics and dead-letter correlation.
func WithEntity(entityType, entityID string) Option {
	return func(msg *Message) {
		msg.EntityType = entityType
		msg.EntityID = entityID
	}
}

// New creates a message ready for enqueueing.
func New(subject, body string, opts ...Option) (*Message, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, ErrSubjectRequired
	}

	msg := &Message{
		ID:        uuid.New(),
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(msg)
		}
	}

	if err := ValidateAttributes(msg.Attributes); err != nil {
		return nil, err
	}

	if msg.CorrelationID == "" {
		msg.CorrelationID = uuid.NewString()
	}

	return msg, nil
}

// MarkAttemptFailed records one failed delivery attempt. RetryCount is
// monotonically non-decreasing; callers other than the dispatcher must not
// invoke this.
func (msg *Message) MarkAttemptFailed(now time.Time) {
	msg.RetryCount++
	retryAt := now.UTC()
	msg.LastRetryAt = &retryAt
}
