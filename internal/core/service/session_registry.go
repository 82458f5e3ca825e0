package service

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/core/ports"
	"github.com/carebridge/identity-core/internal/pkg/metrics"
)

const (
	defaultRegistrySize = 10000
	defaultRegistryTTL  = 24 * time.Hour
)

// RegistryOptions sizes the session table.
type RegistryOptions struct {
	Size           int
	TTL            time.Duration
	ResolveTimeout time.Duration
}

// SessionRegistry keeps one SessionManager per live session and routes
// credential store events to it. Signed-out session ids are remembered for
// TTL so late events cannot bring a session back.
type SessionRegistry struct {
	resolver IdentityResolver
	timeout  time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	sessions *expirable.LRU[string, *SessionManager]
	ended    *expirable.LRU[string, struct{}]
	sub      ports.Subscription
}

func NewSessionRegistry(resolver IdentityResolver, opts RegistryOptions, log zerolog.Logger) *SessionRegistry {
	if opts.Size <= 0 {
		opts.Size = defaultRegistrySize
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultRegistryTTL
	}
	onEvict := func(_ string, _ *SessionManager) { metrics.ActiveSessions.Dec() }
	return &SessionRegistry{
		resolver: resolver,
		timeout:  opts.ResolveTimeout,
		log:      log,
		sessions: expirable.NewLRU[string, *SessionManager](opts.Size, onEvict, opts.TTL),
		ended:    expirable.NewLRU[string, struct{}](opts.Size, nil, opts.TTL),
	}
}

// Start subscribes the registry to src. It replaces any earlier subscription.
func (r *SessionRegistry) Start(src ports.SessionSource) {
	sub := src.OnSessionChange(r.HandleEvent)
	r.mu.Lock()
	prev := r.sub
	r.sub = sub
	r.mu.Unlock()
	if prev != nil {
		prev.Unsubscribe()
	}
}

// Close unsubscribes and drops every resident session.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	r.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
	r.sessions.Purge()
}

// Lookup returns the manager of sessionID, or nil if it is not resident.
func (r *SessionRegistry) Lookup(sessionID string) *SessionManager {
	m, ok := r.sessions.Get(sessionID)
	if !ok {
		return nil
	}
	return m
}

// Len returns the number of resident sessions.
func (r *SessionRegistry) Len() int { return r.sessions.Len() }

// HandleEvent routes ev to the session it concerns. It is the registry's
// ports.SessionHandler.
func (r *SessionRegistry) HandleEvent(ctx context.Context, ev ports.SessionEvent) {
	metrics.SessionEventsTotal.WithLabelValues(string(ev.Kind)).Inc()

	switch ev.Kind {
	case ports.SessionSignedOut:
		r.signOut(ev.SessionID)
	case ports.PrincipalUpdated:
		if ev.Principal != nil {
			r.forPrincipal(ctx, ev.Principal.ID, ev.Principal)
		}
	default:
		if ev.SessionID == "" {
			r.log.Warn().Str("kind", string(ev.Kind)).Msg("session event without session id dropped")
			return
		}
		if r.ended.Contains(ev.SessionID) {
			r.log.Debug().Str("session_id", ev.SessionID).Str("kind", string(ev.Kind)).Msg("event for ended session dropped")
			return
		}
		m := r.acquire(ev.SessionID, ev.Kind == ports.SessionRefreshed)
		m.HandleEvent(ctx, ev)
	}
}

// RefreshPrincipal re-resolves every resident session of principalID from its
// last published principal and returns how many sessions were refreshed.
func (r *SessionRegistry) RefreshPrincipal(ctx context.Context, principalID string) int {
	return r.forPrincipal(ctx, principalID, nil)
}

func (r *SessionRegistry) forPrincipal(ctx context.Context, principalID string, p *domain.Principal) int {
	n := 0
	for _, m := range r.sessions.Values() {
		if m.PrincipalID() != principalID {
			continue
		}
		if _, err := m.Refresh(ctx, p); err != nil {
			r.log.Warn().Err(err).Str("session_id", m.SessionID()).Msg("session refresh failed")
		}
		n++
	}
	return n
}

func (r *SessionRegistry) acquire(sessionID string, touch bool) *SessionManager {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.sessions.Get(sessionID); ok {
		if touch {
			r.sessions.Add(sessionID, m)
		}
		return m
	}
	m := NewSessionManager(sessionID, r.resolver, r.timeout, r.log)
	r.sessions.Add(sessionID, m)
	metrics.ActiveSessions.Inc()
	return m
}

func (r *SessionRegistry) signOut(sessionID string) {
	r.mu.Lock()
	r.ended.Add(sessionID, struct{}{})
	m, ok := r.sessions.Peek(sessionID)
	if ok {
		r.sessions.Remove(sessionID)
	}
	r.mu.Unlock()

	if ok {
		m.Logout()
	}
}
