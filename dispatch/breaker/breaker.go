package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LerianStudio/lib-dispatch/dispatch/internal/nilcheck"
	"github.com/LerianStudio/lib-dispatch/dispatch/log"
	"github.com/sony/gobreaker"
)

// ErrOpen is returned when a call is rejected without being attempted
// because the breaker is open (or admitting its single recovery probe).
var ErrOpen = errors.New("circuit breaker is open")

const (
	// DefaultThreshold is the consecutive-failure count that trips the breaker.
	DefaultThreshold = 5

	// DefaultCooldown is how long the breaker withholds calls after tripping.
	DefaultCooldown = 60 * time.Second
)

// Breaker gates calls to a failing downstream service. After Threshold
// consecutive failures it rejects calls for Cooldown; the first call after
// the cooldown is the recovery probe, and a probe failure reopens the breaker
// immediately.
//
// Each Breaker is an independent instance; there is no shared global state,
// so tests can run multiple breakers side by side.
type Breaker struct {
	mu        sync.RWMutex
	cb        *gobreaker.CircuitBreaker
	name      string
	threshold uint32
	cooldown  time.Duration
	logger    log.Logger
}

// New creates a breaker. Non-positive threshold or cooldown fall back to the
// defaults.
func New(name string, threshold uint32, cooldown time.Duration, logger log.Logger) *Breaker {
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	if nilcheck.Interface(logger) {
		logger = log.NewNop()
	}

	b := &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		logger:    logger,
	}
	b.cb = gobreaker.NewCircuitBreaker(b.settings())

	return b
}

func (b *Breaker) settings() gobreaker.Settings {
	return gobreaker.Settings{
		Name: b.name,
		// A single probe is admitted while half-open; its outcome decides
		// whether the breaker closes or reopens.
		MaxRequests: 1,
		Timeout:     b.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Log(context.Background(), log.LevelWarn, "circuit breaker state changed",
				log.String("breaker", name),
				log.String("from", from.String()),
				log.String("to", to.String()),
			)
		},
	}
}

// Execute runs fn under the breaker. Failures returned by fn count toward the
// trip threshold; rejections while open return ErrOpen and do not count.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	b.mu.RLock()
	cb := b.cb
	b.mu.RUnlock()

	result, err := cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrOpen, err)
		}

		return nil, err
	}

	return result, nil
}

// IsOpen reports whether calls are currently being rejected. Once the
// cooldown has elapsed this reports false, since the next call is allowed
// through as the recovery probe.
func (b *Breaker) IsOpen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.cb.State() == gobreaker.StateOpen
}

// Reset forces the breaker closed and zeroes its failure counters. Safe to
// call at any time, including concurrently with in-flight calls, which finish
// against the previous breaker instance.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cb = gobreaker.NewCircuitBreaker(b.settings())
	b.logger.Log(context.Background(), log.LevelInfo, "circuit breaker reset",
		log.String("breaker", b.name))
}
