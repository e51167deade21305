package middleware

import (
	"nutricoach/internal/core/domain"
	"nutricoach/internal/core/services"
	"nutricoach/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// LocalsRoleContext is the locals key SessionGate stores the role context under
const LocalsRoleContext = "roleContext"

// SessionGate admits a request with a valid or silently rotated session
// and attaches its role context. Rejections never reach the next handler.
func SessionGate(auth services.Authenticator, roles *services.RoleService, cookies *Cookies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out := auth.Authenticate(c.UserContext(), services.SessionRequest{
			AuthorizationHeader: c.Get(fiber.HeaderAuthorization),
			AccessCookie:        c.Cookies(AccessCookieName),
			RefreshCookie:       c.Cookies(RefreshCookieName),
		})

		if out.ClearCookies {
			cookies.Clear(c)
		}
		if !out.Admitted() {
			return response.FromError(c, out.Err)
		}

		// Rotated tokens go out as cookies and headers
		if out.Rotated {
			cookies.Set(c, out.Tokens)
			cookies.SetHeaders(c, out.Tokens)
		}

		rc := roles.NewRoleContext(out.Identity, c.Get(services.ActAsHeader))
		c.Locals(LocalsRoleContext, rc)

		return c.Next()
	}
}

// GetRoleContext returns the role context attached by SessionGate
func GetRoleContext(c *fiber.Ctx) (*services.RoleContext, bool) {
	rc, ok := c.Locals(LocalsRoleContext).(*services.RoleContext)
	return rc, ok && rc != nil
}

// RequireRole allows principals whose effective role ranks at least required
func RequireRole(required domain.Role) fiber.Handler {
	denied := domain.ErrForbiddenRole
	if required.IsHighest() {
		denied = domain.ErrAdminOnly
	}

	return func(c *fiber.Ctx) error {
		rc, ok := GetRoleContext(c)
		if !ok {
			return response.FromError(c, domain.ErrNoToken)
		}
		if !rc.CanAccessRole(required) {
			return response.FromError(c, denied)
		}
		return c.Next()
	}
}

// AdminOnly middleware allows only ADMIN role
func AdminOnly() fiber.Handler {
	return RequireRole(domain.RoleAdmin)
}

// CoachOrAdmin middleware allows COACH or ADMIN roles
func CoachOrAdmin() fiber.Handler {
	return RequireRole(domain.RoleCoach)
}
