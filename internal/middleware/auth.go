package middleware

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/session"

	"github.com/john-revops11/keyword-gemini-insight/internal/models"
)

// SessionUserKey is the session key holding the logged-in user's OIDC subject.
const SessionUserKey = "user_sub"

// UserLookup loads a dashboard user by OIDC subject.
type UserLookup interface {
	GetUserBySub(ctx context.Context, sub string) (*models.User, error)
}

// AuthMiddleware handles user authentication via sessions.
type AuthMiddleware struct {
	users UserLookup
	// enabled is false when no login provider is configured; RequireAuth then
	// lets every request through anonymously.
	enabled bool
}

// NewAuthMiddleware creates a new auth middleware instance.
func NewAuthMiddleware(users UserLookup, enabled bool) *AuthMiddleware {
	return &AuthMiddleware{users: users, enabled: enabled}
}

// RequireAuth ensures the user is authenticated, redirecting to /auth/login if not.
// API requests get a 401 instead of a redirect.
func (m *AuthMiddleware) RequireAuth(c fiber.Ctx) error {
	if !m.enabled {
		return c.Next()
	}

	user, sess := m.load(c)
	if user == nil {
		if sess != nil {
			sess.Delete(SessionUserKey)
		}
		if isAPIRequest(c) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status": "error",
				"error":  "authentication required",
			})
		}
		if sess != nil {
			sess.Set("redirect_after_login", c.OriginalURL())
		}
		return c.Redirect().To("/auth/login")
	}

	c.Locals("user", user)
	return c.Next()
}

// OptionalAuth loads the user if authenticated, but doesn't require authentication.
func (m *AuthMiddleware) OptionalAuth(c fiber.Ctx) error {
	if user, _ := m.load(c); user != nil {
		c.Locals("user", user)
	}
	return c.Next()
}

func (m *AuthMiddleware) load(c fiber.Ctx) (*models.User, *session.Middleware) {
	sess := session.FromContext(c)
	if sess == nil {
		return nil, nil
	}
	sub, ok := sess.Get(SessionUserKey).(string)
	if !ok || sub == "" {
		return nil, sess
	}
	user, err := m.users.GetUserBySub(c.Context(), sub)
	if err != nil {
		return nil, sess
	}
	return user, sess
}

// CurrentUser returns the user loaded by the auth middleware, or nil.
func CurrentUser(c fiber.Ctx) *models.User {
	user, _ := c.Locals("user").(*models.User)
	return user
}

func isAPIRequest(c fiber.Ctx) bool {
	path := c.Path()
	return len(path) >= 5 && path[:5] == "/api/"
}
