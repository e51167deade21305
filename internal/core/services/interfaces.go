package services

import (
	"context"
	"time"

	"nutricoach/internal/core/domain"
)

// Note: SessionService implements Authenticator (session_service.go)
// Note: the Redis attempt store implements AttemptStore (adapters/cache)

// Authenticator is the session gate consumed by the HTTP layer
type Authenticator interface {
	Authenticate(ctx context.Context, req SessionRequest) *SessionOutcome
	Rotate(ctx context.Context, refreshToken string) (*Rotation, error)
	IdentifyBearer(ctx context.Context, header string) (domain.Identity, error)
}

// AttemptStore is a shared counter with a per-key expiry window
type AttemptStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	Count(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

var _ Authenticator = (*SessionService)(nil)
