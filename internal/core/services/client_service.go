package services

import (
	"context"
	"errors"

	"nutricoach/internal/adapters/persistence/models"
	"nutricoach/internal/adapters/persistence/repositories"
	"nutricoach/internal/core/domain"

	"gorm.io/gorm"
)

// ClientService serves client records gated by the role context
type ClientService struct {
	userRepo repositories.UserRepository
}

// NewClientService creates a new client service
func NewClientService(userRepo repositories.UserRepository) *ClientService {
	return &ClientService{userRepo: userRepo}
}

// List returns the clients visible to rc, paginated
func (s *ClientService) List(ctx context.Context, rc *RoleContext, offset, limit int) ([]*models.UserResponse, int64, error) {
	owners, err := rc.Owners(ctx)
	if err != nil {
		return nil, 0, err
	}

	if owners.All {
		users, total, err := s.userRepo.ListByRole(ctx, string(domain.RoleClient), offset, limit)
		if err != nil {
			return nil, 0, err
		}
		return toResponses(users), total, nil
	}

	if rc.ActualRole != domain.RoleCoach {
		return nil, 0, domain.ErrForbiddenRole
	}

	users, err := s.userRepo.ListByIDs(ctx, owners.IDs)
	if err != nil {
		return nil, 0, err
	}

	clients := make([]*models.User, 0, len(users))
	for _, u := range users {
		if u.Role == string(domain.RoleClient) {
			clients = append(clients, u)
		}
	}

	total := int64(len(clients))
	if offset >= len(clients) {
		return []*models.UserResponse{}, total, nil
	}
	end := offset + limit
	if end > len(clients) {
		end = len(clients)
	}
	return toResponses(clients[offset:end]), total, nil
}

// Get returns one client if rc may act on it
func (s *ClientService) Get(ctx context.Context, rc *RoleContext, clientID uint) (*models.UserResponse, error) {
	// Non-admins are refused before lookup so denials never reveal which ids exist
	if !rc.ActualRole.IsHighest() && clientID != rc.PrincipalID {
		if rc.ActualRole != domain.RoleCoach {
			return nil, domain.ErrForbiddenRole
		}
		owners, err := rc.Owners(ctx)
		if err != nil {
			return nil, err
		}
		if !owners.Contains(clientID) {
			return nil, domain.ErrNotAssigned
		}
	}

	user, err := s.userRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	if user.Role != string(domain.RoleClient) {
		return nil, domain.ErrUserNotFound
	}

	if _, err := rc.CanAccessOwner(ctx, domain.Role(user.Role), user.ID); err != nil {
		return nil, err
	}
	return user.ToResponse(), nil
}

func toResponses(users []*models.User) []*models.UserResponse {
	out := make([]*models.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToResponse())
	}
	return out
}
