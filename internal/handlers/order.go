package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// OrderHandler manages order endpoints.
type OrderHandler struct {
	orders *services.OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// createOrderRequest accepts either an items list or a single product_id line.
type createOrderRequest struct {
	Items     []services.CartLine `json:"items"`
	ProductID string              `json:"product_id"`
	Quantity  int                 `json:"quantity"`
	services.ContactDetails
}

// CreateOrder places an order for the authenticated customer or a guest.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	items := req.Items
	if len(items) == 0 && req.ProductID != "" {
		items = []services.CartLine{{ProductID: req.ProductID, Quantity: req.Quantity}}
	}

	order, err := h.orders.PlaceOrder(c.UserContext(), services.PlaceOrderInput{
		Items:    items,
		Contact:  req.ContactDetails,
		Customer: middleware.CurrentCustomer(c),
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": order})
}

// ListOrders returns the authenticated customer's orders, newest first.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	customer := middleware.CurrentCustomer(c)
	if customer == nil {
		return services.UnauthenticatedError("unauthenticated")
	}

	pg := utils.ParsePagination(c, services.OrderPageSize)
	orders, total, err := h.orders.ListForCustomer(c.UserContext(), customer.ID, pg)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"pagination": pg.Meta(total),
	})
}

// GetOrder returns a single order owned by the authenticated customer.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	customer := middleware.CurrentCustomer(c)
	if customer == nil {
		return services.UnauthenticatedError("unauthenticated")
	}

	order, err := h.orders.GetForCustomer(c.UserContext(), customer.ID, c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// UpdateOrder changes status and/or payment status.
func (h *OrderHandler) UpdateOrder(c *fiber.Ctx) error {
	customer := middleware.CurrentCustomer(c)
	if customer == nil {
		return services.UnauthenticatedError("unauthenticated")
	}

	var req services.OrderUpdate
	if err := parseBody(c, &req); err != nil {
		return err
	}

	order, err := h.orders.UpdateForCustomer(c.UserContext(), customer.ID, c.Params("id"), req)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// DeleteOrder removes an order and its lines.
func (h *OrderHandler) DeleteOrder(c *fiber.Ctx) error {
	customer := middleware.CurrentCustomer(c)
	if customer == nil {
		return services.UnauthenticatedError("unauthenticated")
	}

	if err := h.orders.DeleteForCustomer(c.UserContext(), customer.ID, c.Params("id")); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "order deleted successfully"})
}
