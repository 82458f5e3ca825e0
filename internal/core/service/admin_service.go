package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/carebridge/identity-core/internal/core/domain"
	"github.com/carebridge/identity-core/internal/core/policy"
	"github.com/carebridge/identity-core/internal/core/ports"
	"github.com/carebridge/identity-core/internal/pkg/metrics"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// DoctorStore is the doctor side of the profile store used by review.
type DoctorStore interface {
	ports.DoctorDirectory
	GetDoctorProfile(ctx context.Context, principalID string) (*domain.DoctorProfile, error)
}

// RefreshQueue schedules a background re-resolution of a principal's
// sessions.
type RefreshQueue interface {
	Enqueue(principalID string) bool
}

type adminService struct {
	doctors DoctorStore
	refresh RefreshQueue
	policy  policy.Evaluator
	log     zerolog.Logger
}

// NewAdminService returns the doctor review service. Reviewers are checked
// against ev.
func NewAdminService(doctors DoctorStore, refresh RefreshQueue, ev policy.Evaluator, log zerolog.Logger) ports.AdminService {
	return &adminService{doctors: doctors, refresh: refresh, policy: ev, log: log}
}

func (s *adminService) ListDoctors(ctx context.Context, filter ports.DoctorFilter) (*ports.DoctorPage, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.NewValidationError("status must be one of: pending approved rejected")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}

	items, total, err := s.doctors.ListDoctorProfiles(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	pages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	return &ports.DoctorPage{
		Items:      items,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: pages,
	}, nil
}

// ReviewDoctor records an approval decision. The doctor's live sessions are
// refreshed in the background.
func (s *adminService) ReviewDoctor(ctx context.Context, reviewer *domain.ResolvedIdentity, principalID string, decision domain.ApprovalStatus) (*domain.DoctorProfile, error) {
	v := s.policy.Evaluate(reviewer, policy.Requirement{Role: domain.RoleAdmin, Trusted: true})
	if !v.Allowed {
		return nil, v.Err()
	}
	if decision != domain.ApprovalApproved && decision != domain.ApprovalRejected {
		return nil, domain.NewValidationError("decision must be one of: approved rejected")
	}
	if principalID == "" {
		return nil, domain.NewValidationError("doctor id is required")
	}

	if err := s.doctors.SetDoctorApproval(ctx, principalID, decision, reviewer.PrincipalID); err != nil {
		return nil, fmt.Errorf("review doctor: %w", err)
	}
	metrics.DoctorReviewsTotal.WithLabelValues(string(decision)).Inc()
	s.log.Info().
		Str("doctor_id", principalID).
		Str("reviewer_id", reviewer.PrincipalID).
		Str("decision", string(decision)).
		Msg("doctor reviewed")

	if !s.refresh.Enqueue(principalID) {
		s.log.Warn().Str("doctor_id", principalID).Msg("refresh queue full, sessions will pick up the decision on next refresh")
	}

	dp, err := s.doctors.GetDoctorProfile(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("review doctor: %w", err)
	}
	if dp == nil {
		return nil, domain.ErrProfileNotFound
	}
	return dp, nil
}
