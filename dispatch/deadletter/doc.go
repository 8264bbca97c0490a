// Package deadletter durably records messages that exhausted their delivery
// retries. The sink never propagates its own failures: losing a dead-letter
// record is preferable to crashing the dispatcher.
package deadletter
