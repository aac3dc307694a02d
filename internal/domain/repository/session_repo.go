package repository

import (
	"context"
	"time"
)

// SessionRepository stores opaque session identifiers for signed-in accounts.
type SessionRepository interface {
	Create(ctx context.Context, accountID uint, ttl time.Duration) (sessionID string, err error)
	GetAccountID(ctx context.Context, sessionID string) (uint, error)
	Delete(ctx context.Context, sessionID string) error
}
