package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory credential store
// ---------------------------------------------------------------------------

type memAccount struct {
	principal domain.Principal
	password  string
}

type memCreds struct {
	mu        sync.Mutex
	n         int
	accounts  map[string]*memAccount // by email
	sessions  map[string]*domain.Session
	byToken   map[string]string // token -> session id
	verify    map[string]string // token -> email
	reset     map[string]string // token -> email
	handlers  map[int]ports.SessionHandler
	signUpErr error
	events    []ports.SessionEvent
}

func newMemCreds() *memCreds {
	return &memCreds{
		accounts: make(map[string]*memAccount),
		sessions: make(map[string]*domain.Session),
		byToken:  make(map[string]string),
		verify:   make(map[string]string),
		reset:    make(map[string]string),
		handlers: make(map[int]ports.SessionHandler),
	}
}

type memSub struct {
	c  *memCreds
	id int
}

func (s memSub) Unsubscribe() {
	s.c.mu.Lock()
	delete(s.c.handlers, s.id)
	s.c.mu.Unlock()
}

func (c *memCreds) OnSessionChange(h ports.SessionHandler) ports.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	c.handlers[c.n] = h
	return memSub{c: c, id: c.n}
}

func (c *memCreds) emit(ctx context.Context, ev ports.SessionEvent) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	hs := make([]ports.SessionHandler, 0, len(c.handlers))
	for _, h := range c.handlers {
		hs = append(hs, h)
	}
	c.mu.Unlock()
	for _, h := range hs {
		h(ctx, ev)
	}
}

func (c *memCreds) nextID(prefix string) string {
	c.n++
	return fmt.Sprintf("%s-%d", prefix, c.n)
}

func (c *memCreds) SignUp(_ context.Context, email, password string) (*domain.Principal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.signUpErr != nil {
		return nil, c.signUpErr
	}
	if _, ok := c.accounts[email]; ok {
		return nil, domain.ErrEmailTaken
	}
	a := &memAccount{principal: domain.Principal{ID: c.nextID("p"), Email: email}, password: password}
	c.accounts[email] = a
	p := a.principal
	return &p, nil
}

func (c *memCreds) Authenticate(_ context.Context, email, password string) (*domain.Principal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.accounts[email]
	if !ok || a.password != password {
		return nil, domain.ErrInvalidCredentials
	}
	p := a.principal
	return &p, nil
}

func (c *memCreds) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	p, err := c.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	now := time.Now()
	s := &domain.Session{ID: c.nextID("s"), PrincipalID: p.ID, IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
	s.Token = c.nextID("t")
	c.sessions[s.ID] = s
	c.byToken[s.Token] = s.ID
	out := *s
	c.mu.Unlock()

	c.emit(ctx, ports.SessionEvent{Kind: ports.SessionSignedIn, SessionID: s.ID, Principal: p})
	return &out, nil
}

func (c *memCreds) SignOut(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	if ok {
		delete(c.sessions, sessionID)
		delete(c.byToken, s.Token)
	}
	c.mu.Unlock()
	if !ok {
		return domain.ErrSessionExpired
	}
	c.emit(ctx, ports.SessionEvent{Kind: ports.SessionSignedOut, SessionID: sessionID})
	return nil
}

func (c *memCreds) principalOf(principalID string) *domain.Principal {
	for _, a := range c.accounts {
		if a.principal.ID == principalID {
			p := a.principal
			return &p
		}
	}
	return nil
}

func (c *memCreds) ValidateSession(_ context.Context, token string) (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.byToken[token]
	if !ok {
		return nil, domain.ErrSessionExpired
	}
	s := *c.sessions[id]
	return &s, nil
}

func (c *memCreds) RestoreSession(ctx context.Context, token string) (*domain.Session, error) {
	s, err := c.ValidateSession(ctx, token)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	p := c.principalOf(s.PrincipalID)
	c.mu.Unlock()
	c.emit(ctx, ports.SessionEvent{Kind: ports.SessionRestored, SessionID: s.ID, Principal: p})
	return s, nil
}

func (c *memCreds) RefreshSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return nil, domain.ErrSessionExpired
	}
	delete(c.byToken, s.Token)
	s.Token = c.nextID("t")
	s.ExpiresAt = time.Now().Add(time.Hour)
	c.byToken[s.Token] = s.ID
	out := *s
	p := c.principalOf(s.PrincipalID)
	c.mu.Unlock()

	c.emit(ctx, ports.SessionEvent{Kind: ports.SessionRefreshed, SessionID: sessionID, Principal: p})
	return &out, nil
}

func (c *memCreds) SendVerification(_ context.Context, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.accounts[email]; ok {
		c.verify["v-"+email] = email
	}
	return nil
}

func (c *memCreds) Verify(ctx context.Context, token string) (*domain.Principal, error) {
	c.mu.Lock()
	email, ok := c.verify[token]
	if !ok {
		c.mu.Unlock()
		return nil, domain.ErrInvalidToken
	}
	delete(c.verify, token)
	a := c.accounts[email]
	a.principal.EmailVerified = true
	p := a.principal
	c.mu.Unlock()

	c.emit(ctx, ports.SessionEvent{Kind: ports.PrincipalUpdated, Principal: &p})
	return &p, nil
}

func (c *memCreds) RequestPasswordReset(_ context.Context, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.accounts[email]; ok {
		c.reset["r-"+email] = email
	}
	return nil
}

func (c *memCreds) ResetPassword(ctx context.Context, token, newPassword string) error {
	c.mu.Lock()
	email, ok := c.reset[token]
	if !ok {
		c.mu.Unlock()
		return domain.ErrInvalidToken
	}
	delete(c.reset, token)
	a := c.accounts[email]
	a.password = newPassword
	c.mu.Unlock()

	c.revoke(ctx, a.principal.ID, "")
	return nil
}

func (c *memCreds) UpdatePassword(ctx context.Context, sessionID, newPassword string) error {
	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return domain.ErrSessionExpired
	}
	for _, a := range c.accounts {
		if a.principal.ID == s.PrincipalID {
			a.password = newPassword
		}
	}
	pid := s.PrincipalID
	c.mu.Unlock()

	c.revoke(ctx, pid, sessionID)
	return nil
}

func (c *memCreds) revoke(ctx context.Context, principalID, keep string) {
	c.mu.Lock()
	var ids []string
	for id, s := range c.sessions {
		if s.PrincipalID == principalID && id != keep {
			ids = append(ids, id)
		}
	}
	c.mu.Unlock()
	for _, id := range ids {
		_ = c.SignOut(ctx, id)
	}
}

// ---------------------------------------------------------------------------
// In-memory profile store
// ---------------------------------------------------------------------------

type memProfiles struct {
	mu       sync.Mutex
	roles    map[string]domain.RoleAssignment
	doctors  map[string]*domain.DoctorProfile
	patients map[string]*domain.PatientProfile

	getRoleErr       error
	getProfileErr    error
	insertRoleErr    error
	insertProfileErr error
	updateErr        error
	reviews          []string
}

func newMemProfiles() *memProfiles {
	return &memProfiles{
		roles:    make(map[string]domain.RoleAssignment),
		doctors:  make(map[string]*domain.DoctorProfile),
		patients: make(map[string]*domain.PatientProfile),
	}
}

func (s *memProfiles) GetRoleAssignment(_ context.Context, id string) (*domain.RoleAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getRoleErr != nil {
		return nil, s.getRoleErr
	}
	a, ok := s.roles[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *memProfiles) GetDoctorProfile(_ context.Context, id string) (*domain.DoctorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getProfileErr != nil {
		return nil, s.getProfileErr
	}
	p, ok := s.doctors[id]
	if !ok {
		return nil, nil
	}
	return p.Clone().(*domain.DoctorProfile), nil
}

func (s *memProfiles) GetPatientProfile(_ context.Context, id string) (*domain.PatientProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getProfileErr != nil {
		return nil, s.getProfileErr
	}
	p, ok := s.patients[id]
	if !ok {
		return nil, nil
	}
	return p.Clone().(*domain.PatientProfile), nil
}

func (s *memProfiles) InsertRoleAssignment(_ context.Context, a domain.RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertRoleErr != nil {
		return s.insertRoleErr
	}
	if _, ok := s.roles[a.PrincipalID]; ok {
		return domain.ErrRoleAlreadyAssigned
	}
	s.roles[a.PrincipalID] = a
	return nil
}

func (s *memProfiles) InsertProfile(_ context.Context, p domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertProfileErr != nil {
		return s.insertProfileErr
	}
	switch v := p.Clone().(type) {
	case *domain.DoctorProfile:
		s.doctors[v.PrincipalID] = v
	case *domain.PatientProfile:
		s.patients[v.PrincipalID] = v
	}
	return nil
}

func (s *memProfiles) UpdateProfile(_ context.Context, patch ports.ProfilePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	switch p := patch.(type) {
	case ports.DoctorProfilePatch:
		d, ok := s.doctors[p.PrincipalID]
		if !ok {
			return domain.ErrProfileNotFound
		}
		setIf(&d.FirstName, p.FirstName)
		setIf(&d.LastName, p.LastName)
		setIf(&d.Phone, p.Phone)
		setIf(&d.Nationality, p.Nationality)
		setIf(&d.Bio, p.Bio)
		setIf(&d.Website, p.Website)
		setIf(&d.SocialMedia, p.SocialMedia)
		setIf(&d.ProfileImageURL, p.ProfileImageURL)
		if p.Specialties != nil {
			d.Specialties = append([]string(nil), p.Specialties...)
		}
	case ports.PatientProfilePatch:
		pp, ok := s.patients[p.PrincipalID]
		if !ok {
			return domain.ErrProfileNotFound
		}
		setIf(&pp.Alias, p.Alias)
		setIf(&pp.Bio, p.Bio)
	}
	return nil
}

func (s *memProfiles) ListDoctorProfiles(_ context.Context, f ports.DoctorFilter) ([]*domain.DoctorProfile, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*domain.DoctorProfile
	for _, d := range s.doctors {
		if f.Status == "" || d.ApprovalStatus == f.Status {
			all = append(all, d.Clone().(*domain.DoctorProfile))
		}
	}
	start := (f.Page - 1) * f.Limit
	if start > len(all) {
		start = len(all)
	}
	end := min(start+f.Limit, len(all))
	return all[start:end], int64(len(all)), nil
}

func (s *memProfiles) SetDoctorApproval(_ context.Context, id string, status domain.ApprovalStatus, reviewer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.doctors[id]
	if !ok {
		return domain.ErrProfileNotFound
	}
	now := time.Now()
	d.ApprovalStatus = status
	d.IsApproved = status == domain.ApprovalApproved
	d.ReviewedBy = reviewer
	d.ReviewedAt = &now
	s.reviews = append(s.reviews, id+":"+string(status))
	return nil
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func ptr[T any](v T) *T { return &v }
