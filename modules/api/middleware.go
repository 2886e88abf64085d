package api

import (
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/khalidAdell/quick-task/domain/user"
	"github.com/khalidAdell/quick-task/modules/identity"
)

const (
	// PrincipalContextKey is the key used to store the caller in the Fiber context.
	PrincipalContextKey = "principal"
)

// AuthMiddleware creates a middleware that requires a valid bearer token.
func AuthMiddleware(identityPort identity.IdentityPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Authorization header is required",
			})
		}

		token, ok := bearerToken(authHeader)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid authorization header format. Use: Bearer <token>",
			})
		}

		principal, err := identityPort.ValidateToken(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid or expired token",
			})
		}

		c.Locals(PrincipalContextKey, principal)
		return c.Next()
	}
}

// OptionalAuthMiddleware resolves the caller when a bearer token is present
// and lets anonymous requests through. A token that fails validation is
// still rejected so clients notice expired sessions.
func OptionalAuthMiddleware(identityPort identity.IdentityPort) fiber.Handler {
	required := AuthMiddleware(identityPort)
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" {
			return c.Next()
		}
		return required(c)
	}
}

// principalFrom returns the caller stored by the auth middleware, or the anonymous principal.
func principalFrom(c *fiber.Ctx) user.Principal {
	p, _ := c.Locals(PrincipalContextKey).(user.Principal)
	return p
}

func principalFromConn(c *websocket.Conn) user.Principal {
	p, _ := c.Locals(PrincipalContextKey).(user.Principal)
	return p
}

func bearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
