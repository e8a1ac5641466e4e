package middleware

import (
	"errors"
	"log"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/gofiber/fiber/v2"

	"gestionlearn.com/internal/auth"
	"gestionlearn.com/internal/domain"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"

	localsPrincipal = "principal"
)

// AccessToken returns the access token from the cookie, or from an
// "Authorization: Bearer" header for non-browser clients.
func AccessToken(c *fiber.Ctx) string {
	if token := c.Cookies(AccessCookie); token != "" {
		return token
	}
	if header := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// Authenticate verifies the access token and stores the caller's principal
// in the request locals. Errors are returned as domain.AppError for the app
// ErrorHandler to render.
func Authenticate(tokens *auth.TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := AccessToken(c)
		if token == "" {
			return domain.NewUnauthorizedError(domain.CodeAuthRequired, "Authentication required")
		}

		claims, err := tokens.ParseAccess(token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				return domain.NewUnauthorizedError(domain.CodeTokenExpired, "Access token expired")
			}
			return domain.NewUnauthorizedError(domain.CodeInvalidToken, "Invalid access token")
		}

		c.Locals(localsPrincipal, claims.Principal())
		return c.Next()
	}
}

// CasbinMiddleware checks that the caller's role may call the route. The role
// is the casbin subject, so rules are written for roles and groups, not users.
func CasbinMiddleware(enforcer *casbin.Enforcer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := PrincipalFrom(c)
		if !ok {
			return domain.NewUnauthorizedError(domain.CodeAuthRequired, "Authentication required")
		}

		path := routePath(c.Path())
		permit, err := enforcer.Enforce(string(p.Role), path, c.Method())
		if err != nil {
			return domain.NewInternalError("Permission check failed", err)
		}
		if !permit {
			log.Printf("Casbin: %s denied %s %s", p.Role, c.Method(), path)
			return domain.NewForbiddenError("Insufficient permissions")
		}
		return c.Next()
	}
}

// routePath drops the trailing slash that non-strict routing ignores, so
// "/api/courses/" is checked against the same rule as "/api/courses".
func routePath(path string) string {
	if len(path) > 1 {
		return strings.TrimSuffix(path, "/")
	}
	return path
}

// PrincipalFrom returns the caller stored by Authenticate.
func PrincipalFrom(c *fiber.Ctx) (domain.Principal, bool) {
	p, ok := c.Locals(localsPrincipal).(domain.Principal)
	return p, ok
}
