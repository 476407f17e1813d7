package checkout

import (
	"fmt"
	"strings"

	"github.com/printforge/printforge-backend/pkg/enums"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
)

// CartItem is one line of the client-submitted cart snapshot.
type CartItem struct {
	ProductID       string `json:"product_id"`
	Name            string `json:"name"`
	CustomizationID string `json:"customization_id,omitempty"`
	Qty             int    `json:"qty"`
	UnitPriceCents  int64  `json:"unit_price_cents"`
}

// Cart is the session-scoped snapshot submitted at checkout.
type Cart struct {
	SessionKey string         `json:"session_key"`
	Currency   enums.Currency `json:"currency"`
	Items      []CartItem     `json:"items"`
}

// ViolationDetail exposes the data returned to callers when validation fails.
type ViolationDetail struct {
	Index     int    `json:"index"`
	ProductID string `json:"product_id,omitempty"`
	Field     string `json:"field"`
	Reason    string `json:"reason"`
}

// ValidateCart checks the structural invariants of a cart snapshot before any
// pricing happens. A cart that fails here is rejected without creating an order.
func ValidateCart(cart Cart) error {
	if strings.TrimSpace(cart.SessionKey) == "" {
		return pkgerrors.New(pkgerrors.CodeInvalidCart, "session key is required")
	}
	if !cart.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeInvalidCart, fmt.Sprintf("unsupported currency %q", cart.Currency))
	}
	if len(cart.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidCart, "cart has no items")
	}

	var violations []ViolationDetail
	for i, item := range cart.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			violations = append(violations, ViolationDetail{
				Index: i, Field: "product_id", Reason: "required",
			})
		}
		if item.Qty <= 0 {
			violations = append(violations, ViolationDetail{
				Index: i, ProductID: item.ProductID, Field: "qty", Reason: "must be positive",
			})
		}
		if item.UnitPriceCents < 0 {
			violations = append(violations, ViolationDetail{
				Index: i, ProductID: item.ProductID, Field: "unit_price_cents", Reason: "must not be negative",
			})
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeInvalidCart, fmt.Sprintf("cart validation failed for %d item(s)", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}
