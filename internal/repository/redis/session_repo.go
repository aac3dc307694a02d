package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	apperrors "github.com/bikedataproject/identity-api/internal/pkg/errors"
)

const sessionKeyPrefix = "session:"

// SessionRepo implements repository.SessionRepository on Redis. Sessions
// are opaque random identifiers mapped to account IDs with a TTL.
type SessionRepo struct {
	client redis.UniversalClient
}

func NewSessionRepo(client redis.UniversalClient) (*SessionRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required for SessionRepo")
	}
	return &SessionRepo{client: client}, nil
}

func (r *SessionRepo) Create(ctx context.Context, accountID uint, ttl time.Duration) (string, error) {
	sessionID := uuid.NewString()
	key := sessionKeyPrefix + sessionID
	if err := r.client.Set(ctx, key, strconv.FormatUint(uint64(accountID), 10), ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return sessionID, nil
}

func (r *SessionRepo) GetAccountID(ctx context.Context, sessionID string) (uint, error) {
	val, err := r.client.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, apperrors.ErrNotFound
		}
		return 0, fmt.Errorf("failed to read session: %w", err)
	}
	accountID, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt session value %q: %w", val, err)
	}
	return uint(accountID), nil
}

func (r *SessionRepo) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}
