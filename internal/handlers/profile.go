package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/services"
)

// ProfileHandler serves the authenticated principal's own record.
type ProfileHandler struct {
	identity *services.IdentityService
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(identity *services.IdentityService) *ProfileHandler {
	return &ProfileHandler{identity: identity}
}

// GetProfile returns the authenticated user or customer.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return services.UnauthenticatedError("unauthenticated")
	}

	return c.JSON(fiber.Map{"success": true, "data": principal.Profile()})
}

// UpdateCustomerProfile edits the authenticated customer's contact fields.
func (h *ProfileHandler) UpdateCustomerProfile(c *fiber.Ctx) error {
	customer := middleware.CurrentCustomer(c)
	if customer == nil {
		return services.UnauthenticatedError("unauthenticated")
	}

	var req services.CustomerProfileUpdate
	if err := parseBody(c, &req); err != nil {
		return err
	}

	updated, err := h.identity.UpdateCustomerProfile(c.UserContext(), customer.ID, req)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": updated})
}
