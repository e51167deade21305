package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"nutricoach/internal/adapters/persistence/models"
	"nutricoach/internal/core/domain"
	"nutricoach/internal/pkg/password"

	"gorm.io/gorm"
)

// Seeder handles database seeding
type Seeder struct {
	db     *gorm.DB
	cfg    *Config
	policy *password.Policy
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, cfg *Config, policy *password.Policy) *Seeder {
	return &Seeder{db: db, cfg: cfg, policy: policy}
}

// Run executes all seeders
func (s *Seeder) Run() error {
	log.Println("🌱 Running database seeders...")

	if err := s.seedAdminUser(); err != nil {
		log.Printf("⚠️ Admin seeder skipped: %v", err)
	}

	log.Println("✅ Database seeding completed")
	return nil
}

// seedAdminUser creates the bootstrap administrator when none exists.
// Administrators can only be registered by another administrator, so the
// first one comes from SEED_ADMIN_EMAIL / SEED_ADMIN_PASSWORD.
func (s *Seeder) seedAdminUser() error {
	email := strings.ToLower(strings.TrimSpace(s.cfg.Seed.AdminEmail))
	if email == "" || s.cfg.Seed.AdminPassword == "" {
		return errors.New("SEED_ADMIN_EMAIL / SEED_ADMIN_PASSWORD not set")
	}

	// Check if admin already exists
	var count int64
	if err := s.db.Model(&models.User{}).Where("role = ?", string(domain.RoleAdmin)).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := s.policy.Hash(s.cfg.Seed.AdminPassword)
	if err != nil {
		return fmt.Errorf("seed admin password rejected: %w", err)
	}

	admin := &models.User{
		Email:    email,
		FullName: "Administrator",
		Password: hashedPassword,
		Role:     string(domain.RoleAdmin),
		IsActive: true,
	}
	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Admin user created: %s", admin.Email)
	return nil
}
