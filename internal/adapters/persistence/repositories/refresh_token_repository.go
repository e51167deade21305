package repositories

import (
	"context"
	"time"

	"nutricoach/internal/adapters/persistence/models"
	"nutricoach/internal/pkg/password"

	"gorm.io/gorm"
)

// refreshTokenRepository implements RefreshTokenRepository interface
type refreshTokenRepository struct {
	db *gorm.DB
}

// NewRefreshTokenRepository creates a new refresh token repository
func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

// Create stores a new live refresh token
func (r *refreshTokenRepository) Create(ctx context.Context, userID uint, token string, expiresAt time.Time) error {
	record := &models.RefreshToken{
		UserID:    userID,
		TokenHash: password.HashToken(token),
		ExpiresAt: expiresAt,
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// Lookup gets a refresh token record by raw token value
func (r *refreshTokenRepository) Lookup(ctx context.Context, token string) (*models.RefreshToken, error) {
	var record models.RefreshToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ?", password.HashToken(token)).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Delete removes a refresh token; deleting twice is not an error
func (r *refreshTokenRepository) Delete(ctx context.Context, token string) error {
	_, err := r.Consume(ctx, token)
	return err
}

// Consume removes a refresh token and reports whether this call deleted it
func (r *refreshTokenRepository) Consume(ctx context.Context, token string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("token_hash = ?", password.HashToken(token)).
		Delete(&models.RefreshToken{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DeleteAllByUserID removes every refresh token of a user
func (r *refreshTokenRepository) DeleteAllByUserID(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.RefreshToken{}).Error
}

// DeleteExpired deletes all expired tokens (cleanup job)
func (r *refreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.RefreshToken{})
	return result.RowsAffected, result.Error
}

// CountActiveByUserID counts active tokens for a user
func (r *refreshTokenRepository) CountActiveByUserID(ctx context.Context, userID uint, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("user_id = ?", userID).
		Where("expires_at > ?", now).
		Count(&count).Error
	return count, err
}
