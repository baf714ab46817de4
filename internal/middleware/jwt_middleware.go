package middleware

import (
	"context"
	"strings"

	"sportstore/internal/apperrors"
	"sportstore/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// UsernameKey is the c.Locals key holding the authenticated username.
const UsernameKey = "username"

type usernameCtxKey struct{}

// TokenValidator verifies a bearer token. *services.AuthService satisfies it.
type TokenValidator interface {
	ValidateToken(token string) (*services.Claims, error)
}

// UsernameFromContext returns the username AuthRequired stored in ctx.
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameCtxKey{}).(string)
	return username, ok
}

// AuthRequired is a Fiber middleware to check for a valid JWT token.
// A missing or malformed header fails with 401, a bad token with 403.
func AuthRequired(tokens TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperrors.ErrMissingToken
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return apperrors.ErrMissingToken
		}

		claims, err := tokens.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			log.Debug().Err(err).Str("ip", c.IP()).Msg("JWT validation failed")
			return apperrors.ErrInvalidToken
		}

		c.Locals(UsernameKey, claims.Username)
		c.SetUserContext(context.WithValue(c.UserContext(), usernameCtxKey{}, claims.Username))

		return c.Next()
	}
}
