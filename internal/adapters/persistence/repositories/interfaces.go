package repositories

import (
	"context"
	"time"

	"nutricoach/internal/adapters/persistence/models"
)

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, offset, limit int) ([]*models.User, int64, error)
	ListByRole(ctx context.Context, role string, offset, limit int) ([]*models.User, int64, error)
	ListByIDs(ctx context.Context, ids []uint) ([]*models.User, error)
}

// RefreshTokenRepository defines the refresh ledger.
// Raw token values go in; only their hashes are stored.
type RefreshTokenRepository interface {
	Create(ctx context.Context, userID uint, token string, expiresAt time.Time) error
	Lookup(ctx context.Context, token string) (*models.RefreshToken, error)
	// Delete is idempotent: removing a missing record is not an error.
	Delete(ctx context.Context, token string) error
	// Consume deletes the record and reports whether this call removed it.
	Consume(ctx context.Context, token string) (bool, error)
	DeleteAllByUserID(ctx context.Context, userID uint) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	CountActiveByUserID(ctx context.Context, userID uint, now time.Time) (int64, error)
}

// AssignmentRepository defines coach/client assignment access
type AssignmentRepository interface {
	Create(ctx context.Context, coachID, clientID uint) error
	Delete(ctx context.Context, coachID, clientID uint) error
	Exists(ctx context.Context, coachID, clientID uint) (bool, error)
	ListClientIDs(ctx context.Context, coachID uint) ([]uint, error)
	ListCoachIDs(ctx context.Context, clientID uint) ([]uint, error)
}
