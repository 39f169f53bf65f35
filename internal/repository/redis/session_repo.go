package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const SessionKeyPrefix = "session:token"

// SessionRepository keeps one key per issued token id so a token can be
// revoked before it expires.
type SessionRepository struct {
	client *redis.Client
}

func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client}
}

func (r *SessionRepository) key(tokenID string) string {
	return fmt.Sprintf("%s:%s", SessionKeyPrefix, tokenID)
}

func (r *SessionRepository) Add(ctx context.Context, tokenID string, userID uint64, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(tokenID), userID, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// UserID returns the owner of a live session.
func (r *SessionRepository) UserID(ctx context.Context, tokenID string) (uint64, error) {
	val, err := r.client.Get(ctx, r.key(tokenID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, ErrSessionNotFound
	}
	return id, nil
}

// Delete is idempotent.
func (r *SessionRepository) Delete(ctx context.Context, tokenID string) error {
	if err := r.client.Del(ctx, r.key(tokenID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
