package handlers

import (
	"errors"
	"strings"

	"nutricoach/internal/adapters/http/middleware"
	"nutricoach/internal/core/domain"
	"nutricoach/internal/core/services"
	"nutricoach/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
	sessions    services.Authenticator
	cookies     *middleware.Cookies
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, sessions services.Authenticator, cookies *middleware.Cookies) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
		cookies:     cookies,
	}
}

// RegisterRequest represents registration request body
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// LoginRequest represents login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest lets clients without cookie support present the refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register handles user registration
// @Summary Register new user
// @Description Register an account. Role defaults to CLIENT; ADMIN requires an admin bearer token.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body RegisterRequest true "Registration data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if strings.TrimSpace(req.Email) == "" {
		return response.BadRequest(c, "Email is required")
	}
	if req.Password == "" {
		return response.BadRequest(c, "Password is required")
	}

	input := &services.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: strings.TrimSpace(req.FullName),
		Role:     req.Role,
	}

	// Only an ADMIN registration looks at who is asking
	if role, ok := domain.ParseRole(req.Role); ok && role.IsHighest() {
		if header := c.Get(fiber.HeaderAuthorization); header != "" {
			actor, err := h.sessions.IdentifyBearer(c.UserContext(), header)
			if err != nil {
				return response.FromError(c, domain.ErrAdminOnly)
			}
			input.Actor = &actor
		}
	}

	result, err := h.authService.Register(c.UserContext(), input)
	if err != nil {
		return response.FromError(c, err)
	}

	h.cookies.Set(c, result.Tokens)

	return response.Created(c, "User registered successfully", sessionBody(result))
}

// Login handles user login
// @Summary Login user
// @Description Authenticate with email and password and open a session
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Login credentials"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return response.BadRequest(c, "Email and password are required")
	}

	result, err := h.authService.Login(c.UserContext(), &services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	h.cookies.Set(c, result.Tokens)

	return response.Success(c, "Login successful", sessionBody(result))
}

// RefreshToken handles explicit token rotation
// @Summary Rotate tokens
// @Description Exchange a refresh token for a new pair. The presented token is consumed.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body RefreshRequest false "Refresh token when cookies are unavailable"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	refreshToken := c.Cookies(middleware.RefreshCookieName)
	if refreshToken == "" {
		var req RefreshRequest
		if err := c.BodyParser(&req); err == nil {
			refreshToken = strings.TrimSpace(req.RefreshToken)
		}
	}
	if refreshToken == "" {
		return response.FromError(c, domain.ErrSessionExpired)
	}

	rotation, err := h.sessions.Rotate(c.UserContext(), refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrRefreshTokenExpired) {
			h.cookies.Clear(c)
		}
		return response.FromError(c, err)
	}

	h.cookies.Set(c, rotation.Tokens)
	h.cookies.SetHeaders(c, rotation.Tokens)

	return response.Success(c, "Token refreshed successfully", fiber.Map{
		"access_token":       rotation.Tokens.AccessToken,
		"access_expires_at":  rotation.Tokens.AccessExpiresAt,
		"refresh_token":      rotation.Tokens.RefreshToken,
		"refresh_expires_at": rotation.Tokens.RefreshExpiresAt,
	})
}

// Logout handles user logout
// @Summary Logout user
// @Description Delete the presented refresh token and clear cookies. Always succeeds.
// @Tags Auth
// @Accept json
// @Produce json
// @Success 200 {object} response.Response
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	refreshToken := c.Cookies(middleware.RefreshCookieName)
	if refreshToken != "" {
		_ = h.authService.Logout(c.UserContext(), refreshToken)
	}

	h.cookies.Clear(c)

	return response.Success(c, "Logged out successfully", nil)
}

// LogoutAll handles logout from all devices
// @Summary Logout from all devices
// @Description Delete every refresh token of the authenticated user
// @Tags Auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	rc, ok := middleware.GetRoleContext(c)
	if !ok {
		return response.FromError(c, domain.ErrNoToken)
	}

	if err := h.authService.LogoutAll(c.UserContext(), rc.PrincipalID); err != nil {
		return response.FromError(c, err)
	}

	h.cookies.Clear(c)

	return response.Success(c, "Logged out from all devices", nil)
}

// Me returns the current user info
// @Summary Get current user
// @Description Get the authenticated user together with actual and effective roles
// @Tags Auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-Act-As-Role header string false "Role an administrator acts as"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	rc, ok := middleware.GetRoleContext(c)
	if !ok {
		return response.FromError(c, domain.ErrNoToken)
	}

	user, err := h.authService.GetUserByID(c.UserContext(), rc.PrincipalID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "User retrieved successfully", fiber.Map{
		"user":           user.ToResponse(),
		"actual_role":    rc.ActualRole,
		"effective_role": rc.EffectiveRole,
		"is_acting_as":   rc.IsActingAs,
	})
}

func sessionBody(result *services.AuthResult) fiber.Map {
	return fiber.Map{
		"access_token":       result.Tokens.AccessToken,
		"access_expires_at":  result.Tokens.AccessExpiresAt,
		"refresh_expires_at": result.Tokens.RefreshExpiresAt,
		"user":               result.User,
	}
}
