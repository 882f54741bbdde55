package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTerminal(t *testing.T) {
	assert.True(t, OrderStatusDelivered.Terminal())
	assert.True(t, OrderStatusCancelled.Terminal())
	for _, s := range []OrderStatus{OrderStatusPending, OrderStatusPaid, OrderStatusShipped} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestPrincipalTypeValid(t *testing.T) {
	assert.True(t, PrincipalUser.Valid())
	assert.True(t, PrincipalCustomer.Valid())
	assert.False(t, PrincipalType("admin").Valid())
}

func TestLinesTotal(t *testing.T) {
	order := Order{Items: []OrderItem{
		{TotalPrice: decimal.RequireFromString("20.00")},
		{TotalPrice: decimal.RequireFromString("4.50")},
	}}
	assert.True(t, order.LinesTotal().Equal(decimal.RequireFromString("24.50")))
	assert.True(t, (&Order{}).LinesTotal().IsZero())
}
