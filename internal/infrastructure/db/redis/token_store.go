package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carebridge/identity-core/internal/infrastructure/auth"
)

// TokenStore holds single-use verification and password reset tokens.
// Key format: <purpose>:<token>
type TokenStore struct {
	client redis.Cmdable
}

func NewTokenStore(client redis.Cmdable) *TokenStore {
	return &TokenStore{client: client}
}

// Put stores token for principalID until ttl elapses.
func (t *TokenStore) Put(ctx context.Context, purpose auth.TokenPurpose, token, principalID string, ttl time.Duration) error {
	ok, err := t.client.SetNX(ctx, t.key(purpose, token), principalID, ttl).Result()
	if err != nil {
		return fmt.Errorf("put token: %w", err)
	}
	if !ok {
		return errors.New("put token: token already exists")
	}
	return nil
}

// Consume atomically reads and deletes token. It returns "" when the token
// is unknown, expired or already used.
func (t *TokenStore) Consume(ctx context.Context, purpose auth.TokenPurpose, token string) (string, error) {
	id, err := t.client.GetDel(ctx, t.key(purpose, token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("consume token: %w", err)
	}
	return id, nil
}

func (t *TokenStore) key(purpose auth.TokenPurpose, token string) string {
	return fmt.Sprintf("%s:%s", purpose, token)
}
