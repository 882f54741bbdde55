package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

// OrderPageSize is the default page size of a customer's order list.
const OrderPageSize = 10

// OrderUpdate lists the order fields a customer may change. Nil leaves a field as is.
type OrderUpdate struct {
	Status        *string `json:"status" validate:"omitempty,oneof=pending paid shipped delivered cancelled"`
	PaymentStatus *string `json:"payment_status" validate:"omitempty,oneof=unpaid paid refunded"`
}

// ListForCustomer returns one page of the customer's orders, newest first.
func (s *OrderService) ListForCustomer(ctx context.Context, customerID uuid.UUID, pg utils.Pagination) ([]models.Order, int64, error) {
	db := s.db.WithContext(ctx)
	query := db.Model(&models.Order{}).Where("customer_id = ?", customerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, ServerError("failed to count orders", err)
	}

	var orders []models.Order
	if err := db.Where("customer_id = ?", customerID).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Items.Product").
		Preload("Items.Product.Images", galleryOrder).
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return nil, 0, ServerError("failed to list orders", err)
	}

	for i := range orders {
		s.applyProductURLs(&orders[i])
	}
	return orders, total, nil
}

// GetForCustomer returns an order owned by the customer.
func (s *OrderService) GetForCustomer(ctx context.Context, customerID uuid.UUID, orderID string) (*models.Order, error) {
	db := s.db.WithContext(ctx)
	order, err := ownedOrder(db, customerID, orderID)
	if err != nil {
		return nil, err
	}
	return s.load(db, order.ID)
}

// UpdateForCustomer sets status and/or payment status of an owned order.
// Any enum member is accepted; transitions are logged, not restricted, and
// leaving a terminal status is logged as a warning.
func (s *OrderService) UpdateForCustomer(ctx context.Context, customerID uuid.UUID, orderID string, in OrderUpdate) (*models.Order, error) {
	db := s.db.WithContext(ctx)
	order, err := ownedOrder(db, customerID, orderID)
	if err != nil {
		return nil, err
	}

	fields := FieldErrors{}
	fields.Merge(utils.ValidateStruct(in))
	if err := fields.Err(""); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	next := order.Status
	if in.Status != nil {
		next = models.OrderStatus(*in.Status)
		updates["status"] = next
	}
	if in.PaymentStatus != nil {
		updates["payment_status"] = models.PaymentStatus(*in.PaymentStatus)
	}

	if len(updates) > 0 {
		if err := db.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
			return nil, ServerError("failed to update order", err)
		}
		slog.InfoContext(ctx, "order updated",
			"order_id", order.ID,
			"status_from", order.Status,
			"status_to", next,
			"payment_status_from", order.PaymentStatus,
			"payment_status_to", valueOr(in.PaymentStatus, string(order.PaymentStatus)),
		)
		if order.Status.Terminal() && !next.Terminal() {
			slog.WarnContext(ctx, "order reopened from a terminal status",
				"order_id", order.ID,
				"status_from", order.Status,
				"status_to", next,
			)
		}
	}

	return s.load(db, order.ID)
}

// DeleteForCustomer removes an owned order and its lines.
func (s *OrderService) DeleteForCustomer(ctx context.Context, customerID uuid.UUID, orderID string) error {
	db := s.db.WithContext(ctx)
	order, err := ownedOrder(db, customerID, orderID)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Order{}, "id = ?", order.ID).Error
	})
	if err != nil {
		return ServerError("failed to delete order", err)
	}

	slog.InfoContext(ctx, "order deleted", "order_id", order.ID, "order_number", order.OrderNumber)
	return nil
}

// ownedOrder looks the order up and checks that customerID owns it.
// Guest orders belong to nobody.
func ownedOrder(db *gorm.DB, customerID uuid.UUID, orderID string) (*models.Order, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, NotFoundError("order not found")
	}

	var order models.Order
	if err := db.First(&order, "id = ?", id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, NotFoundError("order not found")
		}
		return nil, ServerError("failed to load order", err)
	}

	if order.CustomerID == nil || *order.CustomerID != customerID {
		return nil, ForbiddenError("this order does not belong to you")
	}
	return &order, nil
}

func valueOr(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	return *value
}
