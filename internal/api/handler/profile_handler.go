package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carebridge/identity-core/internal/api/middleware"
	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/core/policy"
	"github.com/carebridge/identity-core/internal/core/ports"
)

// ProfileHandler exposes the caller's identity and profile edits.
type ProfileHandler struct {
	identity ports.IdentityService
	policy   policy.Evaluator
}

func NewProfileHandler(identity ports.IdentityService, ev policy.Evaluator) *ProfileHandler {
	return &ProfileHandler{identity: identity, policy: ev}
}

// Me handles GET /v1/me.
//
// @Summary      Current identity
// @Description  Identity is null while the account has no role.
// @Tags         profile
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  identityResponse
// @Failure      401  {object}  errorResponse
// @Router       /v1/me [get]
func (h *ProfileHandler) Me(c echo.Context) error {
	sessionID, err := ctxSession(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, identityResponse{Identity: h.identity.CurrentIdentity(sessionID)})
}

// Access handles GET /v1/access/:role. It reports the verdict instead of
// failing so clients can follow the redirect hint.
//
// @Summary      Check access to a role area
// @Tags         profile
// @Produce      json
// @Security     BearerAuth
// @Param        role  path      string  true  "patient, doctor or admin"
// @Success      200   {object}  accessResponse
// @Failure      404   {object}  errorResponse
// @Router       /v1/access/{role} [get]
func (h *ProfileHandler) Access(c echo.Context) error {
	role, ok := domain.ParseRole(c.Param("role"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown role")
	}

	id := middleware.Identity(c)
	v := h.policy.Authorize(id, role)
	middleware.RecordVerdict(role, v)

	return c.JSON(http.StatusOK, accessResponse{
		Role:            role,
		Allowed:         v.Allowed,
		Reason:          v.Reason,
		Redirect:        policy.RedirectFor(v),
		PendingApproval: v.Allowed && !id.AccountApproved,
	})
}

// UpdateDoctorProfile handles PATCH /v1/doctor/profile.
//
// @Summary      Edit the caller's doctor profile
// @Tags         profile
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      ports.DoctorProfilePatch  true  "Fields to change"
// @Success      200   {object}  identityResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/doctor/profile [patch]
func (h *ProfileHandler) UpdateDoctorProfile(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var patch ports.DoctorProfilePatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	patch.PrincipalID = id.PrincipalID
	return h.update(c, patch)
}

// UpdatePatientProfile handles PATCH /v1/patient/profile.
//
// @Summary      Edit the caller's patient profile
// @Tags         profile
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      ports.PatientProfilePatch  true  "Fields to change"
// @Success      200   {object}  identityResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/patient/profile [patch]
func (h *ProfileHandler) UpdatePatientProfile(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var patch ports.PatientProfilePatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	patch.PrincipalID = id.PrincipalID
	return h.update(c, patch)
}

// update leaves validation to the service, which checks ownership first.
func (h *ProfileHandler) update(c echo.Context, patch ports.ProfilePatch) error {
	sessionID, err := ctxSession(c)
	if err != nil {
		return err
	}
	updated, err := h.identity.UpdateProfile(c.Request().Context(), sessionID, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, identityResponse{Identity: updated})
}
