package dispatch

import "errors"

var (
	ErrDispatcherRequired = errors.New("dispatcher is required")
	ErrDelivererRequired  = errors.New("deliverer is required")
	ErrSinkRequired       = errors.New("dead letter sink is required")
	ErrShutdownTimeout    = errors.New("dispatcher shutdown timed out")
)
