package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carebridge/identity-core/internal/core/ports"
)

// AuthHandler handles sign-up, sign-in and account maintenance.
type AuthHandler struct {
	identity ports.IdentityService
	accounts ports.AccountService
}

func NewAuthHandler(identity ports.IdentityService, accounts ports.AccountService) *AuthHandler {
	return &AuthHandler{identity: identity, accounts: accounts}
}

// Register creates a patient or doctor account and signs it in.
//
// @Summary      Register a patient or doctor
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details; role selects the profile fields"
// @Success      201   {object}  authResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.identity.Register(c.Request().Context(), req.registration())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newAuthResponse(res))
}

// Login authenticates a principal and opens a session.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  authResponse
// @Failure      401   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.identity.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAuthResponse(res))
}

// Logout ends the caller's session.
//
// @Summary      Logout
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Failure      401  {object}  errorResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	sessionID, err := ctxSession(c)
	if err != nil {
		return err
	}
	if err := h.identity.Logout(c.Request().Context(), sessionID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Refresh re-issues the caller's session token and re-resolves the identity.
//
// @Summary      Refresh the session token
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  authResponse
// @Failure      401  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	sessionID, err := ctxSession(c)
	if err != nil {
		return err
	}
	res, err := h.identity.RefreshSession(c.Request().Context(), sessionID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAuthResponse(res))
}

// Verify consumes an email verification token.
//
// @Summary      Verify an email address
// @Tags         auth
// @Accept       json
// @Param        body  body  tokenRequest  true  "Verification token"
// @Success      204
// @Failure      400  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /auth/verify [post]
func (h *AuthHandler) Verify(c echo.Context) error {
	var req tokenRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.accounts.Verify(c.Request().Context(), req.Token); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ResendVerification sends a new verification token to the caller's email.
//
// @Summary      Resend the verification email
// @Tags         auth
// @Security     BearerAuth
// @Success      202
// @Failure      401  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /auth/verify/resend [post]
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	if err := h.accounts.SendVerification(c.Request().Context(), id.Email); err != nil {
		return err
	}
	return c.NoContent(http.StatusAccepted)
}

// ForgotPassword starts a password reset. The response does not reveal
// whether the email is registered.
//
// @Summary      Request a password reset
// @Tags         auth
// @Accept       json
// @Param        body  body  emailRequest  true  "Account email"
// @Success      202
// @Failure      422  {object}  errorResponse
// @Router       /auth/password/forgot [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.accounts.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.NoContent(http.StatusAccepted)
}

// ResetPassword sets a new password with a reset token.
//
// @Summary      Reset a password
// @Tags         auth
// @Accept       json
// @Param        body  body  resetPasswordRequest  true  "Reset token and new password"
// @Success      204
// @Failure      400  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /auth/password/reset [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.accounts.ResetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdatePassword changes the signed-in caller's password.
//
// @Summary      Change the password
// @Tags         auth
// @Accept       json
// @Security     BearerAuth
// @Param        body  body  updatePasswordRequest  true  "New password"
// @Success      204
// @Failure      401  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /auth/password [put]
func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	sessionID, err := ctxSession(c)
	if err != nil {
		return err
	}
	var req updatePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.accounts.UpdatePassword(c.Request().Context(), sessionID, req.Password); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
