// Package publisher performs the outbound delivery call, gated by a circuit
// breaker and backed by cached short-lived credentials.
package publisher
