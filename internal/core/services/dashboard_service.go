package services

import (
	"context"
	"time"

	"nutricoach/internal/adapters/persistence/models"
	"nutricoach/internal/adapters/persistence/repositories"
	"nutricoach/internal/core/domain"
)

// DashboardService builds the role-specific landing summary
type DashboardService struct {
	userRepo         repositories.UserRepository
	refreshTokenRepo repositories.RefreshTokenRepository
	now              func() time.Time
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(
	userRepo repositories.UserRepository,
	refreshTokenRepo repositories.RefreshTokenRepository,
) *DashboardService {
	return &DashboardService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		now:              time.Now,
	}
}

// DashboardData is the summary for one principal
type DashboardData struct {
	Role           domain.Role            `json:"role"`
	EffectiveRole  domain.Role            `json:"effective_role"`
	ActiveSessions int64                  `json:"active_sessions"`
	UsersByRole    map[domain.Role]int64  `json:"users_by_role,omitempty"`
	Clients        []*models.UserResponse `json:"clients,omitempty"`
	Coaches        []*models.UserResponse `json:"coaches,omitempty"`
}

// Get returns the dashboard of the principal in rc, shaped by its actual role
func (s *DashboardService) Get(ctx context.Context, rc *RoleContext) (*DashboardData, error) {
	sessions, err := s.refreshTokenRepo.CountActiveByUserID(ctx, rc.PrincipalID, s.now())
	if err != nil {
		return nil, err
	}

	data := &DashboardData{
		Role:           rc.ActualRole,
		EffectiveRole:  rc.EffectiveRole,
		ActiveSessions: sessions,
	}

	switch rc.ActualRole {
	case domain.RoleAdmin:
		data.UsersByRole = make(map[domain.Role]int64, len(domain.AllRoles()))
		for _, role := range domain.AllRoles() {
			_, total, err := s.userRepo.ListByRole(ctx, string(role), 0, 1)
			if err != nil {
				return nil, err
			}
			data.UsersByRole[role] = total
		}

	case domain.RoleCoach, domain.RoleClient:
		owners, err := rc.Owners(ctx)
		if err != nil {
			return nil, err
		}
		users, err := s.userRepo.ListByIDs(ctx, owners.IDs)
		if err != nil {
			return nil, err
		}
		if rc.ActualRole == domain.RoleCoach {
			data.Clients = toResponses(users)
		} else {
			data.Coaches = toResponses(users)
		}
	}

	return data, nil
}
