package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/core/ports"
)

// AdminHandler handles doctor review.
type AdminHandler struct {
	admin ports.AdminService
}

func NewAdminHandler(admin ports.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// ListDoctors handles GET /v1/admin/doctors.
//
// @Summary      List doctors for review
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "pending, approved or rejected"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Page size (default 20, max 100)"
// @Success      200     {object}  doctorPageResponse
// @Failure      400     {object}  errorResponse
// @Failure      403     {object}  errorResponse
// @Failure      422     {object}  errorResponse
// @Router       /v1/admin/doctors [get]
func (h *AdminHandler) ListDoctors(c echo.Context) error {
	var (
		status      string
		page, limit int
	)
	if err := echo.QueryParamsBinder(c).
		String("status", &status).
		Int("page", &page).
		Int("limit", &limit).
		BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}

	res, err := h.admin.ListDoctors(c.Request().Context(), ports.DoctorFilter{
		Status: domain.ApprovalStatus(status),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return err
	}

	items := res.Items
	if items == nil {
		items = []*domain.DoctorProfile{}
	}
	return c.JSON(http.StatusOK, doctorPageResponse{
		Items:      items,
		Total:      res.Total,
		Page:       res.Page,
		Limit:      res.Limit,
		TotalPages: res.TotalPages,
	})
}

// ApproveDoctor handles POST /v1/admin/doctors/:id/approve.
//
// @Summary      Approve a doctor
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Doctor principal id"
// @Success      200  {object}  domain.DoctorProfile
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/admin/doctors/{id}/approve [post]
func (h *AdminHandler) ApproveDoctor(c echo.Context) error {
	return h.review(c, domain.ApprovalApproved)
}

// RejectDoctor handles POST /v1/admin/doctors/:id/reject.
//
// @Summary      Reject a doctor
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Doctor principal id"
// @Success      200  {object}  domain.DoctorProfile
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/admin/doctors/{id}/reject [post]
func (h *AdminHandler) RejectDoctor(c echo.Context) error {
	return h.review(c, domain.ApprovalRejected)
}

func (h *AdminHandler) review(c echo.Context, decision domain.ApprovalStatus) error {
	reviewer, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	profile, err := h.admin.ReviewDoctor(c.Request().Context(), reviewer, c.Param("id"), decision)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}
