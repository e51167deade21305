package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"nutricoach/internal/adapters/persistence/models"
	"nutricoach/internal/adapters/persistence/repositories"
	"nutricoach/internal/core/domain"
	"nutricoach/internal/pkg/password"

	"gorm.io/gorm"
)

// UserService handles account administration and self-service password changes
type UserService struct {
	userRepo         repositories.UserRepository
	refreshTokenRepo repositories.RefreshTokenRepository
	policy           *password.Policy
}

// NewUserService creates a new user service
func NewUserService(
	userRepo repositories.UserRepository,
	refreshTokenRepo repositories.RefreshTokenRepository,
	policy *password.Policy,
) *UserService {
	return &UserService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		policy:           policy,
	}
}

// UpdateUserInput represents an admin update; nil fields are left unchanged
type UpdateUserInput struct {
	FullName *string
	Role     *string
	IsActive *bool
}

// ChangePasswordInput represents change password input
type ChangePasswordInput struct {
	OldPassword string
	NewPassword string
}

// ListUsers lists all users with pagination
func (s *UserService) ListUsers(ctx context.Context, offset, limit int) ([]*models.UserResponse, int64, error) {
	users, total, err := s.userRepo.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return toResponses(users), total, nil
}

// GetUser gets a user by ID
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.UserResponse, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.ToResponse(), nil
}

// UpdateUser applies an admin update. Demotions and deactivations revoke
// every refresh token of the account.
func (s *UserService) UpdateUser(ctx context.Context, id, actorID uint, input *UpdateUserInput) (*models.UserResponse, error) {
	if id == actorID && (input.Role != nil || input.IsActive != nil) {
		return nil, domain.ErrSelfModification
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	revoke := false
	if input.Role != nil {
		role, ok := domain.ParseRole(*input.Role)
		if !ok {
			return nil, domain.ErrInvalidRole
		}
		if role.Rank() < domain.Role(user.Role).Rank() {
			revoke = true
		}
		user.Role = string(role)
	}
	if input.IsActive != nil {
		if user.IsActive && !*input.IsActive {
			revoke = true
		}
		user.IsActive = *input.IsActive
	}
	if input.FullName != nil {
		user.FullName = strings.TrimSpace(*input.FullName)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	if revoke {
		if err := s.refreshTokenRepo.DeleteAllByUserID(ctx, user.ID); err != nil {
			return nil, err
		}
		log.Printf("🔒 Sessions revoked for user %d after update by admin %d", user.ID, actorID)
	}

	log.Printf("✅ User %d updated by admin %d", user.ID, actorID)
	return user.ToResponse(), nil
}

// ChangePassword replaces the caller's password and ends all of their sessions
func (s *UserService) ChangePassword(ctx context.Context, userID uint, input *ChangePasswordInput) error {
	user, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	if !s.policy.Verify(input.OldPassword, user.Password) {
		return domain.ErrWrongPassword
	}

	hashed, err := s.policy.Hash(input.NewPassword)
	if err != nil {
		return err
	}

	user.Password = hashed
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	if err := s.refreshTokenRepo.DeleteAllByUserID(ctx, user.ID); err != nil {
		return err
	}

	log.Printf("✅ Password changed for user %d", user.ID)
	return nil
}

func (s *UserService) load(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
