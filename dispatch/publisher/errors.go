package publisher

import (
	"errors"
	"fmt"
)

var (
	// ErrCircuitOpen is returned when delivery is rejected without a network
	// attempt because the circuit breaker is open.
	ErrCircuitOpen = errors.New("delivery rejected: circuit breaker is open")

	ErrClientRequired    = errors.New("notification client is required")
	ErrPublisherRequired = errors.New("publisher is required")
	ErrEmptyReceipt      = errors.New("downstream returned an empty receipt id")
)

// Stage identifies where in the delivery path a failure occurred.
type Stage string

const (
	StageCredentials Stage = "credentials"
	StageDownstream  Stage = "downstream"
)

// DeliveryError wraps any failure from the downstream call or from credential
// acquisition. Both stages count toward the breaker's failure threshold and
// the message's retry budget.
type DeliveryError struct {
	Stage Stage
	Err   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed (%s): %v", e.Stage, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
