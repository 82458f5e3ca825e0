package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carebridge/identity-core/internal/core/domain"
)

// SessionStore keeps live sessions in Redis hashes that expire with the
// session, plus a per-principal index of session ids.
// Key format: session:<session_id>, principal_sessions:<principal_id>
type SessionStore struct {
	client redis.Cmdable
}

func NewSessionStore(client redis.Cmdable) *SessionStore {
	return &SessionStore{client: client}
}

// Save writes s and sets its key to expire at s.ExpiresAt.
func (st *SessionStore) Save(ctx context.Context, s *domain.Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("save session: %w", domain.ErrSessionExpired)
	}
	key := sessionKey(s.ID)
	_, err := st.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"principal_id", s.PrincipalID,
			"token", s.Token,
			"issued_at", s.IssuedAt.UnixNano(),
			"expires_at", s.ExpiresAt.UnixNano(),
		)
		pipe.Expire(ctx, key, ttl)
		// every save carries the newest expiry of the principal's sessions
		pipe.SAdd(ctx, principalKey(s.PrincipalID), s.ID)
		pipe.Expire(ctx, principalKey(s.PrincipalID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get returns nil, nil when the session does not exist or has expired.
func (st *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	fields, err := st.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	issued, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("get session: issued_at: %w", err)
	}
	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("get session: expires_at: %w", err)
	}
	return &domain.Session{
		ID:          id,
		PrincipalID: fields["principal_id"],
		Token:       fields["token"],
		IssuedAt:    time.Unix(0, issued).UTC(),
		ExpiresAt:   time.Unix(0, expires).UTC(),
	}, nil
}

func (st *SessionStore) Delete(ctx context.Context, id string) error {
	principalID, err := st.client.HGet(ctx, sessionKey(id), "principal_id").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete session: %w", err)
	}
	_, err = st.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(id))
		if principalID != "" {
			pipe.SRem(ctx, principalKey(principalID), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (st *SessionStore) ListByPrincipal(ctx context.Context, principalID string) ([]string, error) {
	ids, err := st.client.SMembers(ctx, principalKey(principalID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return ids, nil
}

func sessionKey(id string) string { return "session:" + id }

func principalKey(id string) string { return "principal_sessions:" + id }
