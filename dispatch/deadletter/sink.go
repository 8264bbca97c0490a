package deadletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-dispatch/dispatch/internal/nilcheck"
	"github.com/LerianStudio/lib-dispatch/dispatch/log"
	"github.com/LerianStudio/lib-dispatch/dispatch/message"
	"github.com/LerianStudio/lib-dispatch/dispatch/publisher"
	"github.com/LerianStudio/lib-dispatch/dispatch/runtime"
)

var ErrStoreRequired = errors.New("dead letter store is required")

// Error kinds persisted with dead-letter records.
const (
	ErrorKindCircuitOpen  = "circuit_open"
	ErrorKindCredentials  = "credentials"
	ErrorKindDownstream   = "downstream"
	ErrorKindUnclassified = "unclassified"
)

// Record is the durable trace of a message that exhausted its retries.
type Record struct {
	MessageID     string    `bson:"message_id"     json:"messageId"`
	CorrelationID string    `bson:"correlation_id" json:"correlationId"`
	EntityType    string    `bson:"entity_type"    json:"entityType"`
	EntityID      string    `bson:"entity_id"      json:"entityId"`
	Subject       string    `bson:"subject"        json:"subject"`
	Body          string    `bson:"body"           json:"body"`
	RetryCount    int       `bson:"retry_count"    json:"retryCount"`
	ErrorKind     string    `bson:"error_kind"     json:"errorKind"`
	ErrorMessage  string    `bson:"error_message"  json:"errorMessage"`
	CreatedAt     time.Time `bson:"created_at"     json:"createdAt"`
	FailedAt      time.Time `bson:"failed_at"      json:"failedAt"`
}

// Store is the durable-write operation the sink depends on. Write must be
// atomic per key; distinct keys must never overwrite each other.
type Store interface {
	Write(ctx context.Context, key string, record Record) error
}

// Sink records exhausted messages. It is the last line of defense: Record
// never panics and never propagates store failures beyond a best-effort
// error log, so a broken store can never take the dispatcher down.
type Sink struct {
	store  Store
	logger log.Logger
	now    func() time.Time
}

// SinkOption customizes sink construction.
type SinkOption func(*Sink)

// WithLogger sets a structured logger for fallback reporting.
func WithLogger(logger log.Logger) SinkOption {
	return func(sink *Sink) {
		if !nilcheck.Interface(logger) {
			sink.logger = logger
		}
	}
}

// NewSink creates a sink writing through store.
func NewSink(store Store, opts ...SinkOption) (*Sink, error) {
	if nilcheck.Interface(store) {
		return nil, ErrStoreRequired
	}

	sink := &Sink{
		store:  store,
		logger: log.NewNop(),
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sink)
		}
	}

	return sink, nil
}

// Record durably stores msg together with the failure that exhausted it.
// Keys combine message id and date so repeated runs never silently overwrite
// distinct failures.
func (sink *Sink) Record(ctx context.Context, msg *message.Message, cause error) {
	defer runtime.RecoverAndLog(ctx, sink.logger, "deadletter", "record")

	if msg == nil {
		sink.logger.Log(ctx, log.LevelError, "dead letter requested for nil message")

		return
	}

	failedAt := sink.now().UTC()
	record := Record{
		MessageID:     msg.ID.String(),
		CorrelationID: msg.CorrelationID,
		EntityType:    msg.EntityType,
		EntityID:      msg.EntityID,
		Subject:       msg.Subject,
		Body:          msg.Body,
		RetryCount:    msg.RetryCount,
		ErrorKind:     classifyError(cause),
		ErrorMessage:  sanitizeErrorForStorage(cause),
		CreatedAt:     msg.CreatedAt,
		FailedAt:      failedAt,
	}

	key := recordKey(msg.ID.String(), failedAt)

	if err := sink.store.Write(ctx, key, record); err != nil {
		// Losing a dead-letter record is preferable to crashing the worker.
		sink.logger.Log(ctx, log.LevelError, "failed to persist dead letter",
			log.String("message_id", record.MessageID),
			log.String("correlation_id", record.CorrelationID),
			log.Int("retry_count", record.RetryCount),
			log.Err(err),
		)

		return
	}

	sink.logger.Log(ctx, log.LevelWarn, "message dead-lettered",
		log.String("message_id", record.MessageID),
		log.String("correlation_id", record.CorrelationID),
		log.String("error_kind", record.ErrorKind),
		log.Int("retry_count", record.RetryCount),
	)
}

func recordKey(messageID string, failedAt time.Time) string {
	return fmt.Sprintf("%s/%s", messageID, failedAt.Format("2006-01-02"))
}

func classifyError(cause error) string {
	if cause == nil {
		return ErrorKindUnclassified
	}

	if errors.Is(cause, publisher.ErrCircuitOpen) {
		return ErrorKindCircuitOpen
	}

	var deliveryErr *publisher.DeliveryError
	if errors.As(cause, &deliveryErr) {
		switch deliveryErr.Stage {
		case publisher.StageCredentials:
			return ErrorKindCredentials
		case publisher.StageDownstream:
			return ErrorKindDownstream
		}
	}

	return ErrorKindUnclassified
}
