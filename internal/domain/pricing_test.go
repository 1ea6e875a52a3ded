package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeLineTotal(t *testing.T) {
	cases := []struct {
		name      string
		quantity  int
		unitPrice string
		want      string
	}{
		{"simple", 3, "2000", "6000"},
		{"fractional price", 2, "10.255", "20.51"},
		{"zero quantity", 0, "500", "0"},
		{"negative quantity clamps", -4, "500", "0"},
		{"negative price clamps", 5, "-100", "0"},
		{"both negative", -1, "-1", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeLineTotal(tc.quantity, dec(tc.unitPrice))
			assert.True(t, got.Equal(dec(tc.want)), "expected %s got %s", tc.want, got)
		})
	}
}

func TestComputeTotals(t *testing.T) {
	items := []OrderItem{
		{Quantity: 3, UnitPrice: dec("2000")},
		{Quantity: 1, UnitPrice: dec("499.99")},
	}

	totals := ComputeTotals(items, dec("500"), dec("1000"))

	assert.True(t, totals.Subtotal.Equal(dec("6499.99")))
	assert.True(t, totals.Tax.Equal(dec("500")))
	assert.True(t, totals.Shipping.Equal(dec("1000")))
	assert.True(t, totals.Total.Equal(dec("7999.99")))
}

func TestComputeTotalsClampsTaxAndShipping(t *testing.T) {
	totals := ComputeTotals(nil, dec("-500"), dec("-1"))

	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.Tax.IsZero())
	assert.True(t, totals.Shipping.IsZero())
	assert.True(t, totals.Total.IsZero())
}

func TestComputeTotalsIdempotent(t *testing.T) {
	items := []OrderItem{
		{Quantity: 7, UnitPrice: dec("123.45")},
		{Quantity: 2, UnitPrice: dec("0.01")},
	}

	first := ComputeTotals(items, dec("19.99"), dec("5"))
	second := ComputeTotals(items, first.Tax, first.Shipping)

	assert.True(t, first.Subtotal.Equal(second.Subtotal))
	assert.True(t, first.Total.Equal(second.Total))
}

func TestSyncPaymentStatus(t *testing.T) {
	cases := []struct {
		status  OrderStatus
		initial PaymentStatus
		want    PaymentStatus
		changed bool
	}{
		{OrderStatusPaid, PaymentStatusUnpaid, PaymentStatusPaid, true},
		{OrderStatusFulfilled, PaymentStatusUnpaid, PaymentStatusPaid, true},
		{OrderStatusDelivered, PaymentStatusRefunded, PaymentStatusPaid, true},
		{OrderStatusCancelled, PaymentStatusPaid, PaymentStatusRefunded, true},
		{OrderStatusRefunded, PaymentStatusUnpaid, PaymentStatusRefunded, true},
		{OrderStatusCreated, PaymentStatusUnpaid, PaymentStatusUnpaid, false},
		{OrderStatusProcessing, PaymentStatusPaid, PaymentStatusPaid, false},
		{OrderStatusShipped, PaymentStatusUnpaid, PaymentStatusUnpaid, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			order := Order{Status: tc.status, PaymentStatus: tc.initial}
			changed := SyncPaymentStatus(&order)
			assert.Equal(t, tc.changed, changed)
			assert.Equal(t, tc.want, order.PaymentStatus)
		})
	}
}

func TestIsSettled(t *testing.T) {
	assert.True(t, IsSettled(OrderStatusPaid))
	assert.True(t, IsSettled(OrderStatusFulfilled))
	assert.True(t, IsSettled(OrderStatusDelivered))
	assert.False(t, IsSettled(OrderStatusShipped))
	assert.False(t, IsSettled(OrderStatusCancelled))
}

func TestHasDeliveredItem(t *testing.T) {
	assert.False(t, HasDeliveredItem(nil))
	assert.False(t, HasDeliveredItem([]OrderItem{{Status: ItemStatusPending}}))
	assert.True(t, HasDeliveredItem([]OrderItem{
		{Status: ItemStatusPending},
		{Status: ItemStatusDone},
	}))
	assert.True(t, HasDeliveredItem([]OrderItem{{Status: ItemStatusFulfilled}}))
	assert.True(t, HasDeliveredItem([]OrderItem{{Status: ItemStatusDelivered}}))
}
