package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/printforge/printforge-backend/pkg/checkout"
)

// TaxPolicy computes the tax owed on a subtotal. Policies are pure functions;
// the builder never looks inside them.
type TaxPolicy func(subtotal decimal.Decimal) decimal.Decimal

// ShippingPolicy computes shipping for a cart.
type ShippingPolicy func(cart checkout.Cart) decimal.Decimal

// Breakdown decomposes a computed total for display and audit. Amounts are
// cents in the cart's currency.
type Breakdown struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	TaxCents      int64 `json:"tax_cents"`
	ShippingCents int64 `json:"shipping_cents"`
	TotalCents    int64 `json:"total_cents"`
}

// FixedRateTax applies a flat basis-point rate, rounded to the nearest cent.
func FixedRateTax(rateBps int) TaxPolicy {
	rate := decimal.NewFromInt(int64(rateBps)).Div(decimal.NewFromInt(10000))
	return func(subtotal decimal.Decimal) decimal.Decimal {
		return subtotal.Mul(rate).Round(0)
	}
}

// FlatShipping charges a fixed amount regardless of cart contents.
func FlatShipping(cents int64) ShippingPolicy {
	flat := decimal.NewFromInt(cents)
	return func(checkout.Cart) decimal.Decimal {
		return flat
	}
}

// ComputeTotal builds the immutable pricing snapshot for a cart. It is
// deterministic and side-effect free: identical input always yields an
// identical breakdown, which is what makes retried checkouts safe.
func ComputeTotal(cart checkout.Cart, tax TaxPolicy, shipping ShippingPolicy) (Breakdown, error) {
	if err := checkout.ValidateCart(cart); err != nil {
		return Breakdown{}, err
	}

	subtotal := decimal.Zero
	for _, item := range cart.Items {
		line := decimal.NewFromInt(item.UnitPriceCents).Mul(decimal.NewFromInt(int64(item.Qty)))
		subtotal = subtotal.Add(line)
	}

	taxAmount := decimal.Zero
	if tax != nil {
		taxAmount = tax(subtotal)
	}
	shippingAmount := decimal.Zero
	if shipping != nil {
		shippingAmount = shipping(cart)
	}

	total := subtotal.Add(taxAmount).Add(shippingAmount)
	return Breakdown{
		SubtotalCents: subtotal.IntPart(),
		TaxCents:      taxAmount.IntPart(),
		ShippingCents: shippingAmount.IntPart(),
		TotalCents:    total.IntPart(),
	}, nil
}

// LineTotalCents is the frozen per-line amount stored on order items.
func LineTotalCents(item checkout.CartItem) int64 {
	return decimal.NewFromInt(item.UnitPriceCents).Mul(decimal.NewFromInt(int64(item.Qty))).IntPart()
}
