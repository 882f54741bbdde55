package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

const guestContactMessage = "guest checkout requires name, email, phone"

var errOrderNumberTaken = errors.New("order number already taken")

// CartLine is one requested product and quantity. Quantities below 1 count as 1.
type CartLine struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity"`
}

// ContactDetails are the optional contact fields of a checkout. A nil or
// blank field falls back to the customer profile.
type ContactDetails struct {
	Name    *string `json:"name" validate:"omitempty,max=255"`
	Email   *string `json:"email" validate:"omitempty,email,max=255"`
	Phone   *string `json:"phone" validate:"omitempty,max=20"`
	Address *string `json:"address" validate:"omitempty,max=500"`
	Area    *string `json:"area" validate:"omitempty,max=255"`
	City    *string `json:"city" validate:"omitempty,max=255"`
}

// PlaceOrderInput is a checkout request. Customer is nil for guests.
type PlaceOrderInput struct {
	Items    []CartLine       `json:"items" validate:"dive"`
	Contact  ContactDetails   `json:"-" validate:"-"`
	Customer *models.Customer `json:"-" validate:"-"`
}

// OrderService places orders and manages them on behalf of their customers.
type OrderService struct {
	db      *gorm.DB
	numbers OrderNumberSource
	storage ImageStorage
}

// NewOrderService constructs OrderService.
func NewOrderService(db *gorm.DB, numbers OrderNumberSource, storage ImageStorage) *OrderService {
	return &OrderService{db: db, numbers: numbers, storage: storage}
}

// PlaceOrder validates the cart, snapshots prices and contact data and
// persists the order with its lines in one transaction.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*models.Order, error) {
	contact := normalizeContact(in.Contact)

	fields := FieldErrors{}
	if len(in.Items) == 0 {
		fields.Add("items", "the items field must contain at least one line")
	}
	fields.Merge(utils.ValidateStruct(in))
	fields.Merge(utils.ValidateStruct(contact))

	snapshot := snapshotContact(contact, in.Customer)
	if in.Customer == nil {
		for field, value := range map[string]*string{
			"name":  snapshot.Name,
			"email": snapshot.Email,
			"phone": snapshot.Phone,
		} {
			if value == nil && !fields.Has(field) {
				fields.Add(field, guestContactMessage)
			}
		}
	}
	if err := fields.Err(""); err != nil {
		return nil, err
	}

	productIDs, err := cartProductIDs(in.Items)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	remaining := MaxOrderNumberAttempts
	for {
		var used int
		order, used, err = s.placeOnce(ctx, in, productIDs, snapshot, remaining)
		remaining -= used
		if !errors.Is(err, errOrderNumberTaken) {
			break
		}
		if remaining <= 0 {
			return nil, ServerError("failed to generate a unique order number", err)
		}
		slog.WarnContext(ctx, "order number collided on insert, retrying", "remaining_attempts", remaining)
	}
	if err != nil {
		return nil, asServiceError(err, "failed to place order")
	}

	slog.InfoContext(ctx, "order placed",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"guest", order.CustomerID == nil,
		"lines", len(order.Items),
		"total", order.TotalPrice.StringFixed(2),
	)

	return s.load(s.db.WithContext(ctx), order.ID)
}

// placeOnce runs one checkout transaction with at most budget order-number
// candidates and returns how many it consumed.
func (s *OrderService) placeOnce(ctx context.Context, in PlaceOrderInput, productIDs []uuid.UUID, snapshot ContactDetails, budget int) (*models.Order, int, error) {
	var order models.Order
	used := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products, err := productsByID(tx, productIDs)
		if err != nil {
			return err
		}

		number, n, err := s.numbers.Next(ctx, tx, budget)
		used = n
		if err != nil {
			return err
		}

		order = models.Order{
			OrderNumber:     number,
			Status:          models.OrderStatusPending,
			PaymentStatus:   models.PaymentStatusUnpaid,
			CustomerName:    snapshot.Name,
			CustomerEmail:   snapshot.Email,
			CustomerPhone:   snapshot.Phone,
			CustomerAddress: snapshot.Address,
			CustomerArea:    snapshot.Area,
			CustomerCity:    snapshot.City,
		}
		if in.Customer != nil {
			id := in.Customer.ID
			order.CustomerID = &id
		}

		for i, line := range in.Items {
			product := products[productIDs[i]]
			quantity := line.Quantity
			if quantity < 1 {
				quantity = 1
			}
			productID := product.ID
			order.Items = append(order.Items, models.OrderItem{
				Position:    i + 1,
				ProductID:   &productID,
				ProductName: product.Name,
				Quantity:    quantity,
				UnitPrice:   product.Price,
				TotalPrice:  product.Price.Mul(decimal.NewFromInt(int64(quantity))),
			})
		}
		order.TotalPrice = order.LinesTotal()

		if err := tx.Create(&order).Error; err != nil {
			if database.IsDuplicateKey(err) {
				return errOrderNumberTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, used, err
	}
	return &order, used, nil
}

// load returns the order with its lines in position order and their current products.
func (s *OrderService) load(db *gorm.DB, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Items.Product").
		Preload("Items.Product.Images", galleryOrder).
		First(&order, "id = ?", id).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, NotFoundError("order not found")
		}
		return nil, ServerError("failed to load order", err)
	}
	s.applyProductURLs(&order)
	return &order, nil
}

func (s *OrderService) applyProductURLs(order *models.Order) {
	for i := range order.Items {
		applyImageURLs(s.storage, order.Items[i].Product)
	}
}

func cartProductIDs(lines []CartLine) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		id, err := uuid.Parse(strings.TrimSpace(line.ProductID))
		if err != nil {
			return nil, NotFoundError(fmt.Sprintf("product %q not found", line.ProductID))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// productsByID loads every distinct product of ids, failing on the first missing one.
func productsByID(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	var products []models.Product
	if err := tx.Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, ServerError("failed to load products", err)
	}

	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, NotFoundError(fmt.Sprintf("product %q not found", id))
		}
	}
	return byID, nil
}

func normalizeContact(in ContactDetails) ContactDetails {
	return ContactDetails{
		Name:    trimmed(in.Name),
		Email:   lowered(trimmed(in.Email)),
		Phone:   trimmed(in.Phone),
		Address: trimmed(in.Address),
		Area:    trimmed(in.Area),
		City:    trimmed(in.City),
	}
}

// snapshotContact applies the precedence request value, then profile value, then nil.
func snapshotContact(in ContactDetails, customer *models.Customer) ContactDetails {
	if customer == nil {
		return in
	}
	return ContactDetails{
		Name:    firstSet(in.Name, &customer.Name),
		Email:   firstSet(in.Email, &customer.Email),
		Phone:   firstSet(in.Phone, &customer.Phone),
		Address: firstSet(in.Address, customer.Address),
		Area:    firstSet(in.Area, customer.Area),
		City:    firstSet(in.City, customer.City),
	}
}

func firstSet(values ...*string) *string {
	for _, v := range values {
		if t := trimmed(v); t != nil {
			return t
		}
	}
	return nil
}

func lowered(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.ToLower(*value)
	return &v
}
