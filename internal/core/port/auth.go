package port

import (
	"context"
	"time"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
)

// Authenticator checks credentials and tracks which user a device belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, creds domain.Credentials) (domain.User, error)
	// UnlinkDevice records that the device's user logged out.
	UnlinkDevice(ctx context.Context, deviceID string) error
}

// AttemptLimiter throttles repeated credential failures per key.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Failure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

var SystemClock Clock = ClockFunc(time.Now)
