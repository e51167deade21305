package services

import (
	"context"
	"errors"
	"log"

	"nutricoach/internal/adapters/persistence/repositories"
	"nutricoach/internal/core/domain"

	"gorm.io/gorm"
)

// AssignmentService manages coach/client links
type AssignmentService struct {
	userRepo       repositories.UserRepository
	assignmentRepo repositories.AssignmentRepository
}

// NewAssignmentService creates a new assignment service
func NewAssignmentService(
	userRepo repositories.UserRepository,
	assignmentRepo repositories.AssignmentRepository,
) *AssignmentService {
	return &AssignmentService{
		userRepo:       userRepo,
		assignmentRepo: assignmentRepo,
	}
}

// Assign links coachID to clientID; both must hold the matching role
func (s *AssignmentService) Assign(ctx context.Context, coachID, clientID uint) error {
	if err := s.requireRole(ctx, coachID, domain.RoleCoach); err != nil {
		return err
	}
	if err := s.requireRole(ctx, clientID, domain.RoleClient); err != nil {
		return err
	}

	if err := s.assignmentRepo.Create(ctx, coachID, clientID); err != nil {
		return err
	}

	log.Printf("✅ Coach %d assigned to client %d", coachID, clientID)
	return nil
}

// Unassign removes the link between coachID and clientID
func (s *AssignmentService) Unassign(ctx context.Context, coachID, clientID uint) error {
	if err := s.assignmentRepo.Delete(ctx, coachID, clientID); err != nil {
		return err
	}

	log.Printf("✅ Coach %d unassigned from client %d", coachID, clientID)
	return nil
}

func (s *AssignmentService) requireRole(ctx context.Context, userID uint, role domain.Role) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrUserNotFound
		}
		return err
	}
	if domain.Role(user.Role) != role {
		return domain.ErrInvalidRole
	}
	return nil
}
