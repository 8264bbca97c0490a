package publisher

import (
	"context"
	"time"
)

// Credentials are short-lived delegated credentials for the downstream call.
type Credentials struct {
	AccessKey    string
	SecretKey    string
	SessionToken string
	Expiry       time.Time
}

// usableAt reports whether the credentials are still safe to use at the given
// instant, keeping a refresh margin before expiry.
func (c Credentials) usableAt(now time.Time, margin time.Duration) bool {
	if c.Expiry.IsZero() {
		return false
	}

	return now.Add(margin).Before(c.Expiry)
}

// CredentialProvider acquires delegated credentials for a role. Acquisition
// may block on a network round trip; implementations should honor ctx.
type CredentialProvider interface {
	Assume(ctx context.Context, role string, sessionDuration time.Duration) (Credentials, error)
}
