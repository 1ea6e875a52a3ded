package domain

import "github.com/shopspring/decimal"

// OrderTotals captures the derived monetary figures for one order.
type OrderTotals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// ComputeLineTotal derives a line total from quantity and unit price. Negative
// inputs clamp to zero before multiplication, so the result is never negative.
func ComputeLineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	qty := decimal.NewFromInt(int64(ClampQuantity(quantity)))
	price := ClampNonNegative(unitPrice)
	return Round2(qty.Mul(price))
}

// ComputeTotals derives subtotal and total from the live item set plus the
// order-level tax and shipping figures. Running it twice with no intervening
// item change yields the same result.
func ComputeTotals(items []OrderItem, tax, shipping decimal.Decimal) OrderTotals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(ComputeLineTotal(item.Quantity, item.UnitPrice))
	}
	subtotal = Round2(subtotal)
	tax = ClampNonNegative(tax)
	shipping = ClampNonNegative(shipping)

	return OrderTotals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    Round2(subtotal.Add(tax).Add(shipping)),
	}
}
