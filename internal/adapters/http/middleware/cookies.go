package middleware

import (
	"strings"
	"time"

	"nutricoach/internal/config"
	"nutricoach/internal/core/domain"

	"github.com/gofiber/fiber/v2"
)

// Auth cookie and header names
const (
	AccessCookieName   = "token"
	RefreshCookieName  = "refreshToken"
	HeaderAccessToken  = "X-Access-Token"
	HeaderRefreshToken = "X-Refresh-Token"
)

// Cookies writes and clears the auth cookies
type Cookies struct {
	secure   bool
	sameSite string
	domain   string
}

// NewCookies creates a cookie writer from the cookie configuration
func NewCookies(cfg config.CookieConfig) *Cookies {
	sameSite := fiber.CookieSameSiteLaxMode
	switch strings.ToLower(cfg.SameSite) {
	case "strict":
		sameSite = fiber.CookieSameSiteStrictMode
	case "none":
		sameSite = fiber.CookieSameSiteNoneMode
	}
	return &Cookies{secure: cfg.Secure, sameSite: sameSite, domain: cfg.Domain}
}

// Set writes both cookies, each expiring with its own token
func (w *Cookies) Set(c *fiber.Ctx, tokens *domain.TokenPair) {
	c.Cookie(w.cookie(AccessCookieName, tokens.AccessToken, tokens.AccessExpiresAt))
	c.Cookie(w.cookie(RefreshCookieName, tokens.RefreshToken, tokens.RefreshExpiresAt))
}

// SetHeaders exposes rotated tokens to clients that cannot read Set-Cookie
func (w *Cookies) SetHeaders(c *fiber.Ctx, tokens *domain.TokenPair) {
	c.Set(HeaderAccessToken, tokens.AccessToken)
	c.Set(HeaderRefreshToken, tokens.RefreshToken)
}

// Clear expires both cookies
func (w *Cookies) Clear(c *fiber.Ctx) {
	expired := time.Now().Add(-1 * time.Hour)
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		cookie := w.cookie(name, "", expired)
		cookie.MaxAge = -1
		c.Cookie(cookie)
	}
}

func (w *Cookies) cookie(name, value string, expires time.Time) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		Secure:   w.secure,
		HTTPOnly: true,
		SameSite: w.sameSite,
		Domain:   w.domain,
	}
}
