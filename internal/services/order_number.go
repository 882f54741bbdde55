package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
)

const (
	orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	orderNumberSuffix   = 6
	// MaxOrderNumberAttempts bounds the candidates tried per order, across
	// pre-checks and insert retries.
	MaxOrderNumberAttempts = 10
)

// OrderNumberSource mints order numbers that are free at the time of the call.
// Next tries at most budget candidates and reports how many it used.
type OrderNumberSource interface {
	Next(ctx context.Context, tx *gorm.DB, budget int) (string, int, error)
}

// OrderNumberGenerator produces ORD-YYYYMMDD-XXXXXX numbers and checks them
// against existing orders. The unique index on orders.order_number remains
// the final authority.
type OrderNumberGenerator struct {
	now    func() time.Time
	random func(n int) (string, error)
}

// NewOrderNumberGenerator constructs OrderNumberGenerator.
func NewOrderNumberGenerator() *OrderNumberGenerator {
	return &OrderNumberGenerator{now: time.Now, random: randomSuffix}
}

// Candidate returns a fresh order number without checking the store.
func (g *OrderNumberGenerator) Candidate() (string, error) {
	suffix, err := g.random(orderNumberSuffix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%s-%s", g.now().UTC().Format("20060102"), suffix), nil
}

// Next returns a candidate not yet used by any order visible to tx.
func (g *OrderNumberGenerator) Next(ctx context.Context, tx *gorm.DB, budget int) (string, int, error) {
	for attempt := 1; attempt <= budget; attempt++ {
		candidate, err := g.Candidate()
		if err != nil {
			return "", attempt, ServerError("failed to generate order number", err)
		}

		var count int64
		if err := tx.WithContext(ctx).Model(&models.Order{}).
			Where("order_number = ?", candidate).
			Count(&count).Error; err != nil {
			return "", attempt, ServerError("failed to check order number", err)
		}
		if count == 0 {
			return candidate, attempt, nil
		}
	}
	return "", budget, ServerError("failed to generate a unique order number",
		fmt.Errorf("%d candidates collided", budget))
}

func randomSuffix(n int) (string, error) {
	limit := big.NewInt(int64(len(orderNumberAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = orderNumberAlphabet[idx.Int64()]
	}
	return string(out), nil
}
