package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further fulfilment happens after s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Order is a placed order. The customer_* columns are copied at creation
// and never re-read from the customer afterwards.
type Order struct {
	BaseModel
	OrderNumber     string          `gorm:"size:32;not null;uniqueIndex" json:"order_number"`
	CustomerID      *uuid.UUID      `gorm:"type:uuid;index" json:"customer_id"`
	Customer        *Customer       `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	Status          OrderStatus     `gorm:"size:20;not null" json:"status"`
	PaymentStatus   PaymentStatus   `gorm:"size:20;not null" json:"payment_status"`
	TotalPrice      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	CustomerName    *string         `gorm:"size:255" json:"customer_name"`
	CustomerEmail   *string         `gorm:"size:255" json:"customer_email"`
	CustomerPhone   *string         `gorm:"size:20" json:"customer_phone"`
	CustomerAddress *string         `gorm:"size:500" json:"customer_address"`
	CustomerArea    *string         `gorm:"size:255" json:"customer_area"`
	CustomerCity    *string         `gorm:"size:255" json:"customer_city"`
	Items           []OrderItem     `gorm:"constraint:OnDelete:CASCADE" json:"items"`
}

// OrderItem is an immutable order line. UnitPrice and ProductName are
// snapshots; ProductID is cleared if the product is later deleted.
type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	Position    int             `gorm:"not null" json:"position"`
	ProductID   *uuid.UUID      `gorm:"type:uuid;index" json:"product_id"`
	Product     *Product        `gorm:"constraint:OnDelete:SET NULL" json:"product"`
	ProductName string          `gorm:"size:255" json:"product_name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
}

// LinesTotal sums the line totals.
func (o *Order) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.TotalPrice)
	}
	return total
}
