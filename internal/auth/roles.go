package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// RequireRole ensures the principal holds one of the allowed roles.
func RequireRole(allowed ...APIRole) fiber.Handler {
	allowedSet := make(map[APIRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}

// RequireWorkspace ensures the token's workspace matches the path.
func RequireWorkspace(paramName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if principal.Role == RoleAdmin {
			return c.Next()
		}
		if c.Params(paramName) != principal.WorkspaceID {
			return fiber.NewError(http.StatusForbidden, "workspace mismatch")
		}
		return c.Next()
	}
}
