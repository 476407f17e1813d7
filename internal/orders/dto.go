package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/pkg/enums"
)

// OrderSummary exposes the aggregated fields returned in the session list.
type OrderSummary struct {
	ID             uuid.UUID         `json:"id"`
	Status         enums.OrderStatus `json:"status"`
	Currency       enums.Currency    `json:"currency"`
	TotalCents     int64             `json:"total_cents"`
	TotalItems     int               `json:"total_items"`
	CreatedAt      time.Time         `json:"created_at"`
	TransitionedAt time.Time         `json:"transitioned_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// TransitionInput carries a lifecycle trigger aimed at one order.
type TransitionInput struct {
	OrderID uuid.UUID
	Trigger Trigger
	// PaymentRef guards payment triggers: it must match the reference
	// recorded on the order at charge time.
	PaymentRef *string
}
