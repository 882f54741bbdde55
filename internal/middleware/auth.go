package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

const principalContextKey = "currentPrincipal"

// PrincipalResolver authenticates a bearer token within one principal namespace.
type PrincipalResolver interface {
	Resolve(ctx context.Context, token string, kind models.PrincipalType) (*services.Principal, error)
}

// RequirePrincipal rejects requests without a valid bearer token of the given kind.
func RequirePrincipal(resolver PrincipalResolver, kind models.PrincipalType) fiber.Handler {
	mustBeKnown(kind)
	return func(c *fiber.Ctx) error {
		principal, err := authenticate(c, resolver, kind)
		if err != nil {
			return err
		}
		if principal == nil {
			return services.UnauthenticatedError("missing authorization header")
		}
		c.Locals(principalContextKey, principal)
		return c.Next()
	}
}

// OptionalPrincipal resolves the principal when an Authorization header is
// present and lets anonymous requests through. A header that does not
// authenticate is still rejected.
func OptionalPrincipal(resolver PrincipalResolver, kind models.PrincipalType) fiber.Handler {
	mustBeKnown(kind)
	return func(c *fiber.Ctx) error {
		principal, err := authenticate(c, resolver, kind)
		if err != nil {
			return err
		}
		if principal != nil {
			c.Locals(principalContextKey, principal)
		}
		return c.Next()
	}
}

func mustBeKnown(kind models.PrincipalType) {
	if !kind.Valid() {
		panic(fmt.Sprintf("middleware: unknown principal type %q", kind))
	}
}

func authenticate(c *fiber.Ctx, resolver PrincipalResolver, kind models.PrincipalType) (*services.Principal, error) {
	authHeader := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if authHeader == "" {
		return nil, nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return nil, services.UnauthenticatedError("invalid authorization header")
	}

	return resolver.Resolve(c.UserContext(), strings.TrimSpace(parts[1]), kind)
}

// CurrentPrincipal returns the principal stored by the auth middleware.
func CurrentPrincipal(c *fiber.Ctx) (*services.Principal, bool) {
	principal, ok := c.Locals(principalContextKey).(*services.Principal)
	return principal, ok && principal != nil
}

// CurrentCustomer returns the authenticated customer, or nil for guests and staff.
func CurrentCustomer(c *fiber.Ctx) *models.Customer {
	principal, ok := CurrentPrincipal(c)
	if !ok || principal.Type != models.PrincipalCustomer {
		return nil
	}
	return principal.Customer
}
