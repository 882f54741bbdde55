package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

// AuthHandler bundles the registration, login and logout endpoints of both
// principal namespaces.
type AuthHandler struct {
	identity *services.IdentityService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(identity *services.IdentityService) *AuthHandler {
	return &AuthHandler{identity: identity}
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// RegisterUser creates a staff account.
func (h *AuthHandler) RegisterUser(c *fiber.Ctx) error {
	var req services.UserRegistration
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, token, err := h.identity.RegisterUser(c.UserContext(), req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":    true,
		"user":       user,
		"token":      token,
		"token_type": "Bearer",
	})
}

// RegisterCustomer creates a customer account.
func (h *AuthHandler) RegisterCustomer(c *fiber.Ctx) error {
	var req services.CustomerRegistration
	if err := parseBody(c, &req); err != nil {
		return err
	}

	customer, token, err := h.identity.RegisterCustomer(c.UserContext(), req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":    true,
		"customer":   customer,
		"token":      token,
		"token_type": "Bearer",
	})
}

// Login authenticates within the given principal namespace.
func (h *AuthHandler) Login(kind models.PrincipalType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req loginRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}

		principal, token, err := h.identity.Login(c.UserContext(), kind, req.Email, req.Password)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"success":    true,
			string(kind): principal.Profile(),
			"token":      token,
			"token_type": "Bearer",
		})
	}
}

// Logout revokes the token the request was authenticated with.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return services.UnauthenticatedError("unauthenticated")
	}

	if err := h.identity.Revoke(c.UserContext(), principal.TokenID); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "logged out successfully"})
}
