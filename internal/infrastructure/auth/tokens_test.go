package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/carebridge/identity-core/internal/core/domain"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	ti := NewTokenIssuer("secret-secret-secret-secret-0000", "identity")
	s := &domain.Session{ID: "s1", PrincipalID: "p1", IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}

	tok, err := ti.Issue(s)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := ti.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.SessionID != "s1" || claims.Subject != "p1" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	again, _ := ti.Issue(s)
	if again == tok {
		t.Fatalf("expected distinct tokens for the same session")
	}
}

func TestTokenIssuer_Rejects(t *testing.T) {
	ti := NewTokenIssuer("secret-secret-secret-secret-0000", "identity")
	expired := &domain.Session{ID: "s1", PrincipalID: "p1", IssuedAt: time.Now().Add(-2 * time.Hour), ExpiresAt: time.Now().Add(-time.Hour)}
	tok, _ := ti.Issue(expired)
	if _, err := ti.Parse(tok); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}

	other := NewTokenIssuer("another-secret-another-secret-00", "identity")
	live := &domain.Session{ID: "s1", PrincipalID: "p1", IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
	tok, _ = other.Issue(live)
	if _, err := ti.Parse(tok); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected foreign signature to be rejected, got %v", err)
	}

	if _, err := ti.Parse("not-a-token"); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected garbage to be rejected, got %v", err)
	}
}

func TestRandomToken(t *testing.T) {
	a, err := randomToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := randomToken()
	if a == b || len(a) != 43 {
		t.Fatalf("unexpected tokens %q %q", a, b)
	}
}

func TestHasher(t *testing.T) {
	h := NewHasher(1)
	if h.Cost != 4 {
		t.Fatalf("expected cost clamped to 4, got %d", h.Cost)
	}
	hash, err := h.Hash("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h.Compare(hash, "s3cret-pass") != nil {
		t.Fatalf("expected match")
	}
	if h.Compare(hash, "wrong") == nil {
		t.Fatalf("expected mismatch")
	}
}
