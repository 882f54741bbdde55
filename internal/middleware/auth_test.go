package middleware

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/logging"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

type fakeResolver struct {
	tokens map[string]*services.Principal
	calls  int
}

func (f *fakeResolver) Resolve(_ context.Context, token string, kind models.PrincipalType) (*services.Principal, error) {
	f.calls++
	principal, ok := f.tokens[token]
	if !ok || principal.Type != kind {
		return nil, services.UnauthenticatedError("invalid token")
	}
	return principal, nil
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{tokens: map[string]*services.Principal{
		"customer-token": {
			Type:     models.PrincipalCustomer,
			ID:       uuid.New(),
			Customer: &models.Customer{Name: "Grace"},
		},
		"user-token": {
			Type: models.PrincipalUser,
			ID:   uuid.New(),
			User: &models.User{Name: "Ada"},
		},
	}}
}

func newApp(guard fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			if services.IsKind(err, services.KindUnauthenticated) {
				status = fiber.StatusUnauthorized
			}
			return c.Status(status).SendString(err.Error())
		},
	})
	app.Get("/", guard, func(c *fiber.Ctx) error {
		if customer := CurrentCustomer(c); customer != nil {
			return c.SendString("customer:" + customer.Name)
		}
		if principal, ok := CurrentPrincipal(c); ok {
			return c.SendString(string(principal.Type))
		}
		return c.SendString("guest")
	})
	return app
}

func get(t *testing.T, app *fiber.App, authorization string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestRequirePrincipal(t *testing.T) {
	resolver := newFakeResolver()
	app := newApp(RequirePrincipal(resolver, models.PrincipalCustomer))

	status, body := get(t, app, "Bearer customer-token")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "customer:Grace", body)

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer user-token", "Bearer nope"} {
		status, _ := get(t, app, header)
		assert.Equal(t, fiber.StatusUnauthorized, status, "header %q", header)
	}
}

func TestOptionalPrincipal(t *testing.T) {
	resolver := newFakeResolver()
	app := newApp(OptionalPrincipal(resolver, models.PrincipalCustomer))

	status, body := get(t, app, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "guest", body)
	assert.Zero(t, resolver.calls)

	status, body = get(t, app, "bearer customer-token")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "customer:Grace", body)

	status, _ = get(t, app, "Bearer user-token")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestGuardsRejectUnknownPrincipalType(t *testing.T) {
	resolver := newFakeResolver()
	assert.Panics(t, func() { RequirePrincipal(resolver, models.PrincipalType("admin")) })
	assert.Panics(t, func() { OptionalPrincipal(resolver, "") })
	assert.NotPanics(t, func() { RequirePrincipal(resolver, models.PrincipalUser) })
}

func TestRequestContextCarriesRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(requestid.New(), RequestContext())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(logging.RequestID(c.UserContext()))
	})

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderXRequestID, "req-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, "req-123", string(body))
}
