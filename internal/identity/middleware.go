package identity

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
	apperrors "github.com/supportsphere/helpdesk/pkg/util/errorutil"
)

const sessionKey = "identity_session"

// ProfileLookup resolves the profile behind a token subject.
type ProfileLookup interface {
	Profile(ctx context.Context, userID string) (*domain.Profile, error)
}

// Middleware validates bearer tokens and stores the resulting session.
type Middleware struct {
	tokens   *TokenManager
	profiles ProfileLookup
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager, profiles ProfileLookup) *Middleware {
	return &Middleware{tokens: tokens, profiles: profiles}
}

// Handle resolves the caller. Requests without an Authorization header run
// anonymously; a malformed or invalid token is rejected.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		c.Locals(sessionKey, Anonymous())
		return c.Next()
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	profile, err := m.profiles.Profile(c.UserContext(), claims.Subject)
	if err != nil {
		if gateway.IsNotFound(err) {
			return apperrors.NewUnauthorized("profile not found")
		}
		return apperrors.MapError(err)
	}

	c.Locals(sessionKey, Authenticated(domain.ActorFromProfile(profile)))
	return c.Next()
}

// SessionFromContext returns the request session, anonymous when none was set.
func SessionFromContext(c *fiber.Ctx) Session {
	if s, ok := c.Locals(sessionKey).(Session); ok {
		return s
	}
	return Anonymous()
}

// RequireAuth rejects anonymous callers.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := SessionFromContext(c).Actor(); !ok {
			return apperrors.NewAuthRequired()
		}
		return c.Next()
	}
}

// RequireRole ensures the caller holds one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		actor, ok := SessionFromContext(c).Actor()
		if !ok {
			return apperrors.NewAuthRequired()
		}
		if _, exists := allowedSet[actor.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
