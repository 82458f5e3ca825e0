package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/carebridge/identity-core/internal/api/middleware"
	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/core/ports"
)

type stubIdentityService struct {
	loginFn    func(ctx context.Context, email, password string) (*ports.AuthResult, error)
	registerFn func(ctx context.Context, reg ports.Registration) (*ports.AuthResult, error)
	logoutFn   func(ctx context.Context, sessionID string) error
	refreshFn  func(ctx context.Context, sessionID string) (*ports.AuthResult, error)
	currentFn  func(sessionID string) *domain.ResolvedIdentity
	updateFn   func(ctx context.Context, sessionID string, patch ports.ProfilePatch) (*domain.ResolvedIdentity, error)
}

func (s *stubIdentityService) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubIdentityService) Register(ctx context.Context, reg ports.Registration) (*ports.AuthResult, error) {
	return s.registerFn(ctx, reg)
}

func (s *stubIdentityService) Logout(ctx context.Context, sessionID string) error {
	return s.logoutFn(ctx, sessionID)
}

func (s *stubIdentityService) RefreshSession(ctx context.Context, sessionID string) (*ports.AuthResult, error) {
	return s.refreshFn(ctx, sessionID)
}

func (s *stubIdentityService) Authenticate(context.Context, string) (*ports.AuthResult, error) {
	return nil, domain.ErrSessionExpired
}

func (s *stubIdentityService) CurrentIdentity(sessionID string) *domain.ResolvedIdentity {
	return s.currentFn(sessionID)
}

func (s *stubIdentityService) UpdateProfile(ctx context.Context, sessionID string, patch ports.ProfilePatch) (*domain.ResolvedIdentity, error) {
	return s.updateFn(ctx, sessionID, patch)
}

type stubAccountService struct {
	sendFn   func(ctx context.Context, email string) error
	verifyFn func(ctx context.Context, token string) error
	forgotFn func(ctx context.Context, email string) error
	resetFn  func(ctx context.Context, token, pw string) error
	updateFn func(ctx context.Context, sessionID, pw string) error
}

func (s *stubAccountService) SendVerification(ctx context.Context, email string) error {
	return s.sendFn(ctx, email)
}

func (s *stubAccountService) Verify(ctx context.Context, token string) error {
	return s.verifyFn(ctx, token)
}

func (s *stubAccountService) RequestPasswordReset(ctx context.Context, email string) error {
	return s.forgotFn(ctx, email)
}

func (s *stubAccountService) ResetPassword(ctx context.Context, token, pw string) error {
	return s.resetFn(ctx, token, pw)
}

func (s *stubAccountService) UpdatePassword(ctx context.Context, sessionID, pw string) error {
	return s.updateFn(ctx, sessionID, pw)
}

type stubAdminService struct {
	listFn   func(ctx context.Context, f ports.DoctorFilter) (*ports.DoctorPage, error)
	reviewFn func(ctx context.Context, reviewer *domain.ResolvedIdentity, id string, d domain.ApprovalStatus) (*domain.DoctorProfile, error)
}

func (s *stubAdminService) ListDoctors(ctx context.Context, f ports.DoctorFilter) (*ports.DoctorPage, error) {
	return s.listFn(ctx, f)
}

func (s *stubAdminService) ReviewDoctor(ctx context.Context, reviewer *domain.ResolvedIdentity, id string, d domain.ApprovalStatus) (*domain.DoctorProfile, error) {
	return s.reviewFn(ctx, reviewer, id, d)
}

// newContext builds an echo context with the shared validator installed.
func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// signIn sets what the Auth middleware would inject.
func signIn(c echo.Context, id *domain.ResolvedIdentity) {
	c.Set(middleware.ContextKeySessionID, "sess-1")
	principal := "p-1"
	if id != nil {
		principal = id.PrincipalID
	}
	c.Set(middleware.ContextKeyPrincipalID, principal)
	c.Set(middleware.ContextKeyIdentity, id)
}

func patientIdentity() *domain.ResolvedIdentity {
	return &domain.ResolvedIdentity{
		PrincipalID:     "p-1",
		Email:           "ana@example.com",
		Role:            domain.RolePatient,
		Profile:         &domain.PatientProfile{PrincipalID: "p-1", Alias: "jd"},
		AccountApproved: true,
	}
}

func authResult(id *domain.ResolvedIdentity) *ports.AuthResult {
	return &ports.AuthResult{
		Session:  &domain.Session{ID: "sess-1", PrincipalID: "p-1", Token: "tok"},
		Identity: id,
	}
}

