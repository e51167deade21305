package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"nutricoach/internal/adapters/persistence/repositories"
	"nutricoach/internal/core/domain"
	"nutricoach/internal/pkg/jwt"
	"nutricoach/internal/pkg/metrics"

	"gorm.io/gorm"
)

// SessionState is a step of the request-time session state machine
type SessionState string

const (
	StateUnauthenticated SessionState = "UNAUTHENTICATED"
	StateVerifying       SessionState = "VERIFYING"
	StateRotating        SessionState = "ROTATING"
	StateAdmitted        SessionState = "ADMITTED"
	StateRejected        SessionState = "REJECTED"
)

// SessionRequest carries the credentials presented with one request
type SessionRequest struct {
	AuthorizationHeader string
	AccessCookie        string
	RefreshCookie       string
}

// SessionOutcome is the terminal result of Authenticate
type SessionOutcome struct {
	State SessionState
	Trace []SessionState

	// Err is one of the domain session errors when State is Rejected
	Err error

	Identity domain.Identity

	// Tokens is set when the access token was rotated
	Tokens  *domain.TokenPair
	Rotated bool

	// ClearCookies asks the transport to drop both auth cookies
	ClearCookies bool
}

// Admitted reports whether the request may proceed
func (o *SessionOutcome) Admitted() bool {
	return o.State == StateAdmitted
}

// Code returns the machine code of the rejection, empty when admitted
func (o *SessionOutcome) Code() string {
	if o.Err == nil {
		return ""
	}
	return domain.CodeOf(o.Err)
}

func (o *SessionOutcome) enter(state SessionState) {
	o.State = state
	o.Trace = append(o.Trace, state)
}

// Rotation is a successful refresh exchange
type Rotation struct {
	Identity domain.Identity
	Tokens   *domain.TokenPair
}

// SessionService verifies access tokens and rotates refresh tokens
type SessionService struct {
	tokens  *jwt.Manager
	users   repositories.UserRepository
	ledger  repositories.RefreshTokenRepository
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(
	tokens *jwt.Manager,
	users repositories.UserRepository,
	ledger repositories.RefreshTokenRepository,
	m *metrics.Metrics,
) *SessionService {
	return &SessionService{
		tokens:  tokens,
		users:   users,
		ledger:  ledger,
		metrics: m,
		now:     time.Now,
	}
}

// Authenticate runs the session state machine for one request.
// It never returns nil.
func (s *SessionService) Authenticate(ctx context.Context, req SessionRequest) *SessionOutcome {
	out := &SessionOutcome{}
	out.enter(StateUnauthenticated)

	accessToken := BearerToken(req.AuthorizationHeader)
	if accessToken == "" {
		accessToken = strings.TrimSpace(req.AccessCookie)
	}
	if accessToken == "" {
		return s.reject(out, domain.ErrNoToken)
	}

	out.enter(StateVerifying)
	claims, err := s.tokens.VerifyAccessToken(accessToken)
	switch {
	case err == nil:
		identity, err := s.resolveIdentity(ctx, claims.UserID)
		if err != nil {
			return s.reject(out, err)
		}
		return s.admit(out, identity)

	case errors.Is(err, jwt.ErrTokenExpired):
		out.enter(StateRotating)
		if strings.TrimSpace(req.RefreshCookie) == "" {
			return s.reject(out, domain.ErrSessionExpired)
		}

		rotation, err := s.Rotate(ctx, req.RefreshCookie)
		if err != nil {
			out.ClearCookies = errors.Is(err, domain.ErrRefreshTokenExpired)
			return s.reject(out, err)
		}

		out.Tokens = rotation.Tokens
		out.Rotated = true
		return s.admit(out, rotation.Identity)

	default:
		return s.reject(out, domain.ErrInvalidToken)
	}
}

// Rotate exchanges a refresh token for a new pair exactly once.
//
// The new record is written before the old one is consumed. When several
// callers race on the same token only the one whose consume removes the
// row succeeds; the others drop the record they wrote and get
// ErrRefreshTokenExpired.
func (s *SessionService) Rotate(ctx context.Context, refreshToken string) (*Rotation, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		s.metrics.Rotation("missing")
		return nil, domain.ErrSessionExpired
	}

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		s.metrics.Rotation("unverifiable")
		return nil, domain.ErrSessionExpired
	}

	record, err := s.ledger.Lookup(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.Rotation("unknown")
			return nil, domain.ErrRefreshTokenExpired
		}
		log.Printf("⚠️ Refresh ledger lookup failed: %v", err)
		s.metrics.Rotation("error")
		return nil, domain.ErrSessionExpired
	}
	if record.IsExpiredAt(s.now()) {
		if err := s.ledger.Delete(ctx, refreshToken); err != nil {
			log.Printf("⚠️ Failed to drop expired refresh record: %v", err)
		}
		s.metrics.Rotation("expired")
		return nil, domain.ErrRefreshTokenExpired
	}
	if record.UserID != claims.UserID {
		s.metrics.Rotation("mismatch")
		return nil, domain.ErrSessionExpired
	}

	identity, err := s.resolveIdentity(ctx, record.UserID)
	if err != nil {
		s.metrics.Rotation("identity")
		return nil, err
	}

	pair, err := s.tokens.IssuePair(identity)
	if err != nil {
		log.Printf("❌ Failed to issue rotated tokens for user %d: %v", identity.ID, err)
		s.metrics.Rotation("error")
		return nil, domain.ErrSessionExpired
	}

	if err := s.ledger.Create(ctx, identity.ID, pair.RefreshToken, pair.RefreshExpiresAt); err != nil {
		log.Printf("⚠️ Failed to persist rotated refresh token for user %d: %v", identity.ID, err)
		s.metrics.Rotation("error")
		return nil, domain.ErrSessionExpired
	}

	consumed, err := s.ledger.Consume(ctx, refreshToken)
	if err != nil || !consumed {
		if dropErr := s.ledger.Delete(context.WithoutCancel(ctx), pair.RefreshToken); dropErr != nil {
			log.Printf("⚠️ Failed to drop losing refresh record for user %d: %v", identity.ID, dropErr)
		}
		if err != nil {
			log.Printf("⚠️ Failed to consume refresh token for user %d: %v", identity.ID, err)
			s.metrics.Rotation("error")
			return nil, domain.ErrSessionExpired
		}
		s.metrics.Rotation("lost_race")
		return nil, domain.ErrRefreshTokenExpired
	}

	s.metrics.Rotation("ok")
	return &Rotation{Identity: identity, Tokens: pair}, nil
}

// IdentifyBearer verifies a bearer header without attempting rotation
func (s *SessionService) IdentifyBearer(ctx context.Context, header string) (domain.Identity, error) {
	token := BearerToken(header)
	if token == "" {
		return domain.Identity{}, domain.ErrNoToken
	}

	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, domain.ErrSessionExpired
		}
		return domain.Identity{}, domain.ErrInvalidToken
	}
	return s.resolveIdentity(ctx, claims.UserID)
}

// resolveIdentity loads the current identity; storage errors fail closed
func (s *SessionService) resolveIdentity(ctx context.Context, userID uint) (domain.Identity, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Identity{}, domain.ErrInvalidSession
		}
		log.Printf("⚠️ User lookup failed during session check (user %d): %v", userID, err)
		return domain.Identity{}, domain.ErrSessionExpired
	}
	if !user.IsActive {
		return domain.Identity{}, domain.ErrInvalidSession
	}

	identity := user.Identity()
	if !identity.Role.IsValid() {
		return domain.Identity{}, domain.ErrInvalidSession
	}
	return identity, nil
}

func (s *SessionService) admit(out *SessionOutcome, identity domain.Identity) *SessionOutcome {
	out.Identity = identity
	out.enter(StateAdmitted)

	outcome := metrics.OutcomeAdmitted
	if out.Rotated {
		outcome = metrics.OutcomeRotated
	}
	s.metrics.Session(outcome, "")
	return out
}

func (s *SessionService) reject(out *SessionOutcome, err error) *SessionOutcome {
	out.Err = err
	out.enter(StateRejected)
	s.metrics.Session(metrics.OutcomeRejected, domain.CodeOf(err))
	return out
}

// BearerToken extracts the token of an "Authorization: Bearer" header
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
