package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/core/ports"
	"github.com/carebridge/identity-core/internal/pkg/metrics"
)

// DefaultResolveTimeout bounds a single resolution when none is configured.
const DefaultResolveTimeout = 10 * time.Second

// State is a published identity together with the error of the resolution
// that produced it. Seq is the sequence number of that resolution; zero means
// nothing has been published yet.
type State struct {
	Identity *domain.ResolvedIdentity
	Err      error
	Seq      uint64
}

func (s State) clone() State {
	s.Identity = s.Identity.Clone()
	return s
}

// Listener observes published states. Listeners run in publication order on
// the goroutine that published and must not trigger a resolution on the same
// manager synchronously.
type Listener func(State)

// SessionManager owns the published identity of one session. Every
// resolution is tagged with a sequence number at dispatch and a completion is
// applied only if its number is higher than the last applied one, so a slow
// stale resolution can never overwrite a newer result.
type SessionManager struct {
	sessionID string
	resolver  IdentityResolver
	timeout   time.Duration
	log       zerolog.Logger

	dispatched atomic.Uint64

	mu        sync.Mutex
	cur       State
	target    *domain.Principal
	ended     bool
	listeners map[int]Listener
	nextID    int

	// notifyMu is taken before mu is released so listeners observe
	// publications in order.
	notifyMu sync.Mutex
}

func NewSessionManager(sessionID string, resolver IdentityResolver, timeout time.Duration, log zerolog.Logger) *SessionManager {
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	return &SessionManager{
		sessionID: sessionID,
		resolver:  resolver,
		timeout:   timeout,
		log:       log.With().Str("session_id", sessionID).Logger(),
		listeners: make(map[int]Listener),
	}
}

// SessionID returns the session this manager belongs to.
func (m *SessionManager) SessionID() string { return m.sessionID }

// Current returns a copy of the published identity, or nil when the session
// is unauthenticated.
func (m *SessionManager) Current() *domain.ResolvedIdentity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur.Identity.Clone()
}

// Snapshot returns a copy of the published state.
func (m *SessionManager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur.clone()
}

// PrincipalID returns the id of the principal of the latest dispatched
// resolution, which may still be running.
func (m *SessionManager) PrincipalID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.target == nil {
		return ""
	}
	return m.target.ID
}

// Ended reports whether the session has been signed out.
func (m *SessionManager) Ended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ended
}

// OnChange registers l and returns a function that removes it.
func (m *SessionManager) OnChange(l Listener) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// HandleEvent reacts to a session event and returns the state published
// after it. A sign-out or an event without a principal ends the session.
func (m *SessionManager) HandleEvent(ctx context.Context, ev ports.SessionEvent) State {
	if ev.Kind == ports.SessionSignedOut || ev.Principal == nil {
		m.Logout()
		return m.Snapshot()
	}
	m.resolve(ctx, ev.Principal)
	return m.Snapshot()
}

// Refresh re-resolves p, or the latest dispatched principal when p is nil, and
// returns the identity published afterwards. If a newer resolution has
// already been applied, that newer result is returned instead.
func (m *SessionManager) Refresh(ctx context.Context, p *domain.Principal) (*domain.ResolvedIdentity, error) {
	if p == nil {
		m.mu.Lock()
		if m.target != nil {
			c := *m.target
			p = &c
		}
		m.mu.Unlock()
	}
	if p == nil {
		return nil, domain.ErrSessionExpired
	}

	st, _ := m.resolve(ctx, p)
	return st.Identity, st.Err
}

// Logout publishes nil synchronously under a new top sequence number, which
// outranks every resolution still in flight. The session stays ended.
func (m *SessionManager) Logout() {
	seq := m.dispatched.Add(1)
	if m.publish(State{Seq: seq}, true) {
		m.log.Debug().Uint64("seq", seq).Msg("session signed out")
	}
}

// resolve dispatches a resolution of p and reports the state published after
// it completes and whether its own result was applied. The principal is
// recorded at dispatch so principal-wide refreshes reach sessions whose first
// resolution is still running.
func (m *SessionManager) resolve(ctx context.Context, p *domain.Principal) (State, bool) {
	m.mu.Lock()
	if m.ended {
		m.mu.Unlock()
		return State{Err: domain.ErrSessionExpired}, false
	}
	seq := m.dispatched.Add(1)
	c := *p
	m.target = &c
	m.mu.Unlock()

	id, err := m.resolveWithTimeout(ctx, p)

	applied := m.publish(State{Identity: id, Err: err, Seq: seq}, false)
	if applied {
		metrics.PublishTotal.WithLabelValues("applied").Inc()
	} else {
		metrics.PublishTotal.WithLabelValues("superseded").Inc()
		m.log.Debug().Uint64("seq", seq).Msg("stale resolution discarded")
	}

	st := m.Snapshot()
	if !applied && m.Ended() {
		st.Err = domain.ErrSessionExpired
	}
	return st, applied
}

// resolveWithTimeout runs detached from the caller's cancellation; only the
// manager's timeout bounds it.
func (m *SessionManager) resolveWithTimeout(ctx context.Context, p *domain.Principal) (*domain.ResolvedIdentity, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()

	type result struct {
		id  *domain.ResolvedIdentity
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := m.resolver.Resolve(ctx, p)
		done <- result{id: id, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && !errors.Is(r.err, domain.ErrProfileLookup) {
			r.err = lookupErr(p.ID, StageProfile, r.err)
		}
		if r.err != nil {
			return nil, r.err
		}
		return r.id, nil
	case <-ctx.Done():
		m.log.Warn().Str("principal_id", p.ID).Dur("timeout", m.timeout).Msg("identity resolution timed out")
		return nil, lookupErr(p.ID, StageTimeout, ctx.Err())
	}
}

// publish applies s if its sequence number is higher than the applied one.
func (m *SessionManager) publish(s State, logout bool) bool {
	m.mu.Lock()
	if s.Seq <= m.cur.Seq || m.ended {
		m.mu.Unlock()
		return false
	}
	m.cur = s
	if logout {
		m.ended = true
	}
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.notifyMu.Lock()
	m.mu.Unlock()

	defer m.notifyMu.Unlock()
	for _, l := range listeners {
		l(s.clone())
	}
	return true
}
