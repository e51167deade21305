package jwt

import (
	"errors"
	"strconv"
	"time"

	"nutricoach/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

const (
	// AudienceAccess is the audience of access tokens
	AudienceAccess = "client"

	// AudienceRefresh is the audience of refresh tokens
	AudienceRefresh = "refresh"

	// TypeRefresh marks a refresh token
	TypeRefresh = "refresh"

	DefaultIssuer     = "nutricoach-api"
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Config holds signing secrets and lifetimes
type Config struct {
	AccessSecret  string
	RefreshSecret string // defaults to AccessSecret
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Claims represents the JWT claims
type Claims struct {
	UserID    uint   `json:"user_id"`
	Role      string `json:"role"`
	TokenType string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and verifies access and refresh tokens
type Manager struct {
	cfg Config
	now func() time.Time
}

// NewManager creates a token manager, filling defaults for empty fields
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessSecret == "" {
		return nil, errors.New("jwt: access secret is required")
	}
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.AccessSecret
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	return &Manager{cfg: cfg, now: time.Now}, nil
}

// Config returns the effective configuration
func (m *Manager) Config() Config {
	return m.cfg
}

// IssueAccessToken generates a new access token valid for ttl
func (m *Manager) IssueAccessToken(identity domain.Identity, ttl time.Duration) (string, time.Time, error) {
	return m.issue(identity, ttl, AudienceAccess, "", m.cfg.AccessSecret)
}

// IssueRefreshToken generates a new refresh token valid for ttl
func (m *Manager) IssueRefreshToken(identity domain.Identity, ttl time.Duration) (string, time.Time, error) {
	return m.issue(identity, ttl, AudienceRefresh, TypeRefresh, m.cfg.RefreshSecret)
}

// IssuePair generates an access/refresh pair with the configured lifetimes.
// The caller persists the refresh token.
func (m *Manager) IssuePair(identity domain.Identity) (*domain.TokenPair, error) {
	access, accessExp, err := m.IssueAccessToken(identity, m.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := m.IssueRefreshToken(identity, m.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (m *Manager) issue(identity domain.Identity, ttl time.Duration, audience, tokenType, secret string) (string, time.Time, error) {
	now := m.now()
	expiresAt := jwt.NewNumericDate(now.Add(ttl))

	claims := Claims{
		UserID:    identity.ID,
		Role:      string(identity.Role),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.FormatUint(uint64(identity.ID), 10),
			ExpiresAt: expiresAt,
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.cfg.Issuer,
			Audience:  jwt.ClaimStrings{audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt.Time, nil
}

// VerifyAccessToken validates an access token and returns claims
func (m *Manager) VerifyAccessToken(tokenString string) (*Claims, error) {
	return m.Verify(tokenString, AudienceAccess, m.cfg.AccessSecret)
}

// VerifyRefreshToken validates a refresh token and returns claims
func (m *Manager) VerifyRefreshToken(tokenString string) (*Claims, error) {
	return m.Verify(tokenString, AudienceRefresh, m.cfg.RefreshSecret)
}

// Verify validates signature, algorithm, issuer, audience and expiry.
// It returns ErrTokenExpired only when expiry is the sole defect.
func (m *Manager) Verify(tokenString, audience, secret string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	})

	if err != nil {
		if isExpiryOnly(err) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	isRefresh := claims.TokenType == TypeRefresh
	if isRefresh != (audience == AudienceRefresh) {
		return nil, ErrTokenInvalid
	}
	if claims.UserID == 0 || claims.Subject != strconv.FormatUint(uint64(claims.UserID), 10) {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// Identity returns the identity carried by the claims
func (c *Claims) Identity() domain.Identity {
	return domain.Identity{ID: c.UserID, Role: domain.Role(c.Role)}
}

func isExpiryOnly(err error) bool {
	if !errors.Is(err, jwt.ErrTokenExpired) {
		return false
	}
	for _, other := range []error{
		jwt.ErrTokenMalformed,
		jwt.ErrTokenUnverifiable,
		jwt.ErrTokenSignatureInvalid,
		jwt.ErrTokenInvalidAudience,
		jwt.ErrTokenInvalidIssuer,
		jwt.ErrTokenUsedBeforeIssued,
		jwt.ErrTokenNotValidYet,
		jwt.ErrTokenRequiredClaimMissing,
	} {
		if errors.Is(err, other) {
			return false
		}
	}
	return true
}
