package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LerianStudio/lib-dispatch/dispatch/breaker"
	"github.com/LerianStudio/lib-dispatch/dispatch/internal/nilcheck"
	"github.com/LerianStudio/lib-dispatch/dispatch/log"
	"github.com/LerianStudio/lib-dispatch/dispatch/message"
)

const (
	// DefaultRefreshMargin is how long before expiry cached credentials are
	// refreshed.
	DefaultRefreshMargin = 5 * time.Minute

	// DefaultSessionDuration is the requested lifetime for delegated
	// credentials.
	DefaultSessionDuration = time.Hour
)

// Request carries one delivery to the downstream client. Credentials is nil
// when no credential provider is configured (clients that authenticate at the
// connection level ignore it).
type Request struct {
	Subject    string
	Body       string
	Attributes []message.Attribute

	Credentials *Credentials
}

// Client is the narrow downstream operation the publisher depends on: publish
// a notification, return the downstream-assigned receipt id.
type Client interface {
	Publish(ctx context.Context, req Request) (receiptID string, err error)
}

// Publisher performs the actual delivery call, gated by a circuit breaker it
// owns. It also acquires and caches short-lived credentials when a provider
// is configured; credential failures surface as DeliveryError and count
// toward the breaker exactly like downstream failures.
type Publisher struct {
	client   Client
	provider CredentialProvider
	brk      *breaker.Breaker
	logger   log.Logger

	role            string
	sessionDuration time.Duration
	refreshMargin   time.Duration
	brkThreshold    uint32
	brkCooldown     time.Duration

	// credMu guards the cached credentials; the breaker has its own lock.
	credMu    sync.Mutex
	cached    Credentials
	hasCached bool

	now func() time.Time
}

// Option customizes publisher construction.
type Option func(*Publisher)

// WithLogger sets a structured logger.
func WithLogger(logger log.Logger) Option {
	return func(pub *Publisher) {
		if !nilcheck.Interface(logger) {
			pub.logger = logger
		}
	}
}

// WithBreaker sets the failure threshold and cooldown of the owned breaker.
func WithBreaker(threshold uint32, cooldown time.Duration) Option {
	return func(pub *Publisher) {
		pub.brkThreshold = threshold
		pub.brkCooldown = cooldown
	}
}

// WithCredentialProvider configures delegated-credential acquisition for the
// given role.
func WithCredentialProvider(provider CredentialProvider, role string) Option {
	return func(pub *Publisher) {
		if nilcheck.Interface(provider) {
			return
		}

		pub.provider = provider
		pub.role = role
	}
}

// WithSessionDuration sets the requested credential lifetime.
func WithSessionDuration(duration time.Duration) Option {
	return func(pub *Publisher) {
		if duration > 0 {
			pub.sessionDuration = duration
		}
	}
}

// WithRefreshMargin sets how early cached credentials are refreshed before
// expiry.
func WithRefreshMargin(margin time.Duration) Option {
	return func(pub *Publisher) {
		if margin > 0 {
			pub.refreshMargin = margin
		}
	}
}

// New creates a publisher delivering through client.
func New(client Client, opts ...Option) (*Publisher, error) {
	if nilcheck.Interface(client) {
		return nil, ErrClientRequired
	}

	pub := &Publisher{
		client:          client,
		logger:          log.NewNop(),
		sessionDuration: DefaultSessionDuration,
		refreshMargin:   DefaultRefreshMargin,
		now:             time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(pub)
		}
	}

	pub.brk = breaker.New("publisher", pub.brkThreshold, pub.brkCooldown, pub.logger)

	return pub, nil
}

// Deliver publishes msg downstream. It fails fast with ErrCircuitOpen while
// the breaker is open (no attempt is made, and the rejection does not count
// as a further failure). Any real failure is wrapped as DeliveryError and
// advances the breaker's consecutive-failure count; success resets it.
func (pub *Publisher) Deliver(ctx context.Context, msg *message.Message) (string, error) {
	if pub == nil {
		return "", ErrPublisherRequired
	}

	if msg == nil {
		return "", message.ErrMessageRequired
	}

	result, err := pub.brk.Execute(func() (any, error) {
		creds, err := pub.credentials(ctx)
		if err != nil {
			return nil, &DeliveryError{Stage: StageCredentials, Err: err}
		}

		receiptID, err := pub.client.Publish(ctx, Request{
			Subject:     msg.Subject,
			Body:        msg.Body,
			Attributes:  msg.Attributes,
			Credentials: creds,
		})
		if err != nil {
			return nil, &DeliveryError{Stage: StageDownstream, Err: err}
		}

		if receiptID == "" {
			return nil, &DeliveryError{Stage: StageDownstream, Err: ErrEmptyReceipt}
		}

		return receiptID, nil
	})
	if err != nil {
		if errors.Is(err, breaker.ErrOpen) {
			return "", ErrCircuitOpen
		}

		return "", err
	}

	receiptID, ok := result.(string)
	if !ok {
		return "", &DeliveryError{Stage: StageDownstream, Err: ErrEmptyReceipt}
	}

	return receiptID, nil
}

// IsCircuitOpen reports whether the breaker currently rejects deliveries.
func (pub *Publisher) IsCircuitOpen() bool {
	return pub.brk.IsOpen()
}

// ResetCircuit forces the breaker closed, an operator action callable at any
// time, including concurrently with in-flight deliveries.
func (pub *Publisher) ResetCircuit() {
	pub.brk.Reset()
}

// credentials returns usable delegated credentials, refreshing the cache when
// within the refresh margin of expiry. Returns nil when no provider is
// configured.
func (pub *Publisher) credentials(ctx context.Context) (*Credentials, error) {
	if pub.provider == nil {
		return nil, nil
	}

	pub.credMu.Lock()
	defer pub.credMu.Unlock()

	now := pub.now().UTC()
	if pub.hasCached && pub.cached.usableAt(now, pub.refreshMargin) {
		creds := pub.cached

		return &creds, nil
	}

	creds, err := pub.provider.Assume(ctx, pub.role, pub.sessionDuration)
	if err != nil {
		return nil, err
	}

	pub.cached = creds
	pub.hasCached = true
	pub.logger.Log(ctx, log.LevelDebug, "delegated credentials refreshed",
		log.String("role", pub.role),
		log.Any("expiry", creds.Expiry),
	)

	return &creds, nil
}
