package repositories

import (
	"context"

	"nutricoach/internal/adapters/persistence/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// assignmentRepository implements AssignmentRepository interface
type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository creates a new coach assignment repository
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

// Create links a coach to a client; an existing link is left untouched
func (r *assignmentRepository) Create(ctx context.Context, coachID, clientID uint) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.CoachAssignment{CoachID: coachID, ClientID: clientID}).Error
}

// Delete removes a coach/client link
func (r *assignmentRepository) Delete(ctx context.Context, coachID, clientID uint) error {
	return r.db.WithContext(ctx).
		Where("coach_id = ? AND client_id = ?", coachID, clientID).
		Delete(&models.CoachAssignment{}).Error
}

// Exists checks if a coach is assigned to a client
func (r *assignmentRepository) Exists(ctx context.Context, coachID, clientID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CoachAssignment{}).
		Where("coach_id = ? AND client_id = ?", coachID, clientID).
		Count(&count).Error
	return count > 0, err
}

// ListClientIDs lists the clients assigned to a coach
func (r *assignmentRepository) ListClientIDs(ctx context.Context, coachID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.CoachAssignment{}).
		Where("coach_id = ?", coachID).
		Order("client_id").
		Pluck("client_id", &ids).Error
	return ids, err
}

// ListCoachIDs lists the coaches assigned to a client
func (r *assignmentRepository) ListCoachIDs(ctx context.Context, clientID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.CoachAssignment{}).
		Where("client_id = ?", clientID).
		Order("coach_id").
		Pluck("coach_id", &ids).Error
	return ids, err
}
