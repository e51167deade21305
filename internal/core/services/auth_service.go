package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"nutricoach/internal/adapters/persistence/models"
	"nutricoach/internal/adapters/persistence/repositories"
	"nutricoach/internal/core/domain"
	"nutricoach/internal/pkg/jwt"
	"nutricoach/internal/pkg/metrics"
	"nutricoach/internal/pkg/password"

	"gorm.io/gorm"
)

// AuthService handles authentication business logic
type AuthService struct {
	userRepo         repositories.UserRepository
	refreshTokenRepo repositories.RefreshTokenRepository
	policy           *password.Policy
	tokens           *jwt.Manager
	limiter          *LoginLimiter
	metrics          *metrics.Metrics
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo repositories.UserRepository,
	refreshTokenRepo repositories.RefreshTokenRepository,
	policy *password.Policy,
	tokens *jwt.Manager,
	limiter *LoginLimiter,
	m *metrics.Metrics,
) *AuthService {
	return &AuthService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		policy:           policy,
		tokens:           tokens,
		limiter:          limiter,
		metrics:          m,
	}
}

// RegisterInput represents registration input
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Role     string

	// Actor is the verified bearer of the request, if any
	Actor *domain.Identity
}

// LoginInput represents login input
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult represents a freshly issued session
type AuthResult struct {
	User   *models.UserResponse
	Tokens *domain.TokenPair
}

// Register creates an account and opens its first session
func (s *AuthService) Register(ctx context.Context, input *RegisterInput) (*AuthResult, error) {
	// 1. Resolve requested role
	role := domain.RoleClient
	if strings.TrimSpace(input.Role) != "" {
		parsed, ok := domain.ParseRole(input.Role)
		if !ok {
			return nil, domain.ErrInvalidRole
		}
		role = parsed
	}
	if role.IsHighest() && (input.Actor == nil || !input.Actor.Role.IsHighest()) {
		return nil, domain.ErrAdminOnly
	}

	// 2. Enforce password policy before touching storage
	if err := password.Check(input.Password); err != nil {
		return nil, err
	}

	// 3. Check if email already exists
	email := normalizeEmail(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidInput
	}
	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrEmailAlreadyExists
	}

	// 4. Hash password
	hashedPassword, err := s.policy.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	// 5. Create user
	user := &models.User{
		Email:    email,
		FullName: strings.TrimSpace(input.FullName),
		Password: hashedPassword,
		Role:     string(role),
		IsActive: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrEmailAlreadyExists
		}
		return nil, err
	}

	// 6. Issue and store tokens
	tokens, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	log.Printf("✅ User registered: %s (role %s)", user.Email, user.Role)
	return &AuthResult{User: user.ToResponse(), Tokens: tokens}, nil
}

// Login authenticates a user. Unknown emails, wrong passwords and inactive
// accounts are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*AuthResult, error) {
	email := normalizeEmail(input.Email)

	// 1. Shared lockout counter
	if !s.limiter.Allowed(ctx, email) {
		s.metrics.Login("locked")
		return nil, domain.ErrTooManyAttempts
	}

	// 2. Find user by email
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.policy.VerifyDummy(input.Password)
			return nil, s.loginFailed(ctx, email)
		}
		return nil, err
	}

	// 3. Verify password, then account state
	if !s.policy.Verify(input.Password, user.Password) || !user.IsActive {
		return nil, s.loginFailed(ctx, email)
	}

	// 4. Issue and store tokens
	tokens, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.limiter.Reset(ctx, email)
	s.metrics.Login("ok")
	log.Printf("✅ User logged in: %s", user.Email)

	return &AuthResult{User: user.ToResponse(), Tokens: tokens}, nil
}

// Logout deletes the presented refresh token from the ledger
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	if err := s.refreshTokenRepo.Delete(ctx, refreshToken); err != nil {
		return err
	}

	log.Printf("✅ User logged out")
	return nil
}

// LogoutAll deletes every refresh token of a user
func (s *AuthService) LogoutAll(ctx context.Context, userID uint) error {
	if err := s.refreshTokenRepo.DeleteAllByUserID(ctx, userID); err != nil {
		return err
	}

	log.Printf("✅ All sessions revoked for user ID: %d", userID)
	return nil
}

// GetUserByID gets a user by ID
func (s *AuthService) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// openSession issues a token pair and records the refresh token
func (s *AuthService) openSession(ctx context.Context, user *models.User) (*domain.TokenPair, error) {
	tokens, err := s.tokens.IssuePair(user.Identity())
	if err != nil {
		return nil, err
	}
	if err := s.refreshTokenRepo.Create(ctx, user.ID, tokens.RefreshToken, tokens.RefreshExpiresAt); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email string) error {
	s.limiter.Fail(ctx, email)
	s.metrics.Login("invalid")
	return domain.ErrInvalidCredentials
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
