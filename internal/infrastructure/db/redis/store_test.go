package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/infrastructure/auth"
)

// Integration tests; they run only when REDIS_TEST_ADDR points at a server.
func testClient(t *testing.T) *SessionStore {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client, err := Connect(context.Background(), Config{Addr: addr, DB: 15})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionStore(client)
}

func TestSessionStore_SaveGetDelete(t *testing.T) {
	store := testClient(t)
	ctx := context.Background()
	now := time.Now().UTC()
	s := &domain.Session{ID: uuid.NewString(), PrincipalID: "p1", Token: "tok", IssuedAt: now, ExpiresAt: now.Add(time.Minute)}

	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.PrincipalID != "p1" || got.Token != "tok" || !got.ExpiresAt.Equal(s.ExpiresAt) {
		t.Fatalf("unexpected session %+v", got)
	}

	if err := store.Delete(ctx, s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, err := store.Get(ctx, s.ID); err != nil || got != nil {
		t.Fatalf("expected missing session, got %+v, %v", got, err)
	}
}

func TestSessionStore_ListByPrincipal(t *testing.T) {
	store := testClient(t)
	ctx := context.Background()
	now := time.Now().UTC()
	principal := uuid.NewString()
	a := &domain.Session{ID: uuid.NewString(), PrincipalID: principal, Token: "a", IssuedAt: now, ExpiresAt: now.Add(time.Minute)}
	b := &domain.Session{ID: uuid.NewString(), PrincipalID: principal, Token: "b", IssuedAt: now, ExpiresAt: now.Add(time.Minute)}
	for _, s := range []*domain.Session{a, b} {
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	ids, err := store.ListByPrincipal(ctx, principal)
	if err != nil || len(ids) != 2 {
		t.Fatalf("expected 2 sessions, got %v, %v", ids, err)
	}
	if err := store.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ids, err = store.ListByPrincipal(ctx, principal)
	if err != nil || len(ids) != 1 || ids[0] != b.ID {
		t.Fatalf("expected only %s, got %v, %v", b.ID, ids, err)
	}
}

func TestSessionStore_RejectsExpired(t *testing.T) {
	store := testClient(t)
	s := &domain.Session{ID: uuid.NewString(), ExpiresAt: time.Now().Add(-time.Second)}
	if err := store.Save(context.Background(), s); err == nil {
		t.Fatalf("expected error for expired session")
	}
}

func TestTokenStore_SingleUse(t *testing.T) {
	sessions := testClient(t)
	tokens := NewTokenStore(sessions.client)
	ctx := context.Background()
	tok := uuid.NewString()

	if err := tokens.Put(ctx, auth.PurposeVerifyEmail, tok, "p1", time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if id, err := tokens.Consume(ctx, auth.PurposeResetPassword, tok); err != nil || id != "" {
		t.Fatalf("tokens must be scoped by purpose, got %q, %v", id, err)
	}
	if id, err := tokens.Consume(ctx, auth.PurposeVerifyEmail, tok); err != nil || id != "p1" {
		t.Fatalf("expected p1, got %q, %v", id, err)
	}
	if id, err := tokens.Consume(ctx, auth.PurposeVerifyEmail, tok); err != nil || id != "" {
		t.Fatalf("expected used token to be gone, got %q, %v", id, err)
	}
}
