package middleware

import (
	"context"
	"strings"

	"inkwell/internal/auth"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
)

// Locals keys populated by Authenticate.
const (
	LocalActor  = "actor"
	LocalUserID = "userID"
	LocalClaims = "claims"
)

// TokenCookie is the cookie that carries the session token for browser clients.
const TokenCookie = "token"

// Authenticator resolves a raw token into the calling actor.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Actor, *auth.Claims, error)
}

// ExtractToken returns the bearer token from the Authorization header, falling
// back to the token cookie.
func ExtractToken(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Cookies(TokenCookie)
}

// Authenticate verifies the request token and stores the actor in locals.
// With required=false a missing or invalid token leaves the request anonymous.
func Authenticate(a Authenticator, required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := ExtractToken(c)
		if token == "" && !required {
			return c.Next()
		}

		actor, claims, err := a.Authenticate(c.UserContext(), token)
		if err != nil {
			if !required {
				return c.Next()
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}

		c.Locals(LocalActor, actor)
		c.Locals(LocalClaims, claims)
		c.Locals(LocalUserID, actor.ID.Hex())
		// Sync to UserContext for logging and downstream services
		c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, actor.ID.Hex()))
		observability.AddTraceAttributesToContext(c.UserContext(),
			attribute.String("user.id", actor.ID.Hex()),
			attribute.String("user.role", string(actor.Role)),
		)

		return c.Next()
	}
}

// ActorFrom returns the authenticated actor, or nil for anonymous requests.
func ActorFrom(c *fiber.Ctx) *models.Actor {
	actor, _ := c.Locals(LocalActor).(*models.Actor)
	return actor
}

// ClaimsFrom returns the verified token claims, or nil for anonymous requests.
func ClaimsFrom(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(LocalClaims).(*auth.Claims)
	return claims
}
