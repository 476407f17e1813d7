package outbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/pkg/enums"
)

// ItemSnapshot is a line item frozen at transition time.
type ItemSnapshot struct {
	ProductID       string `json:"productId"`
	Name            string `json:"name"`
	CustomizationID string `json:"customizationId,omitempty"`
	Qty             int    `json:"qty"`
	UnitPriceCents  int64  `json:"unitPriceCents"`
	TotalCents      int64  `json:"totalCents"`
}

// OrderSnapshot is the order state embedded in every delivery payload. It is
// captured when the transition commits, never re-read at delivery time.
type OrderSnapshot struct {
	ID             uuid.UUID         `json:"id"`
	SessionKey     string            `json:"sessionKey"`
	Status         enums.OrderStatus `json:"status"`
	Currency       enums.Currency    `json:"currency"`
	SubtotalCents  int64             `json:"subtotalCents"`
	TaxCents       int64             `json:"taxCents"`
	ShippingCents  int64             `json:"shippingCents"`
	TotalCents     int64             `json:"totalCents"`
	Items          []ItemSnapshot    `json:"items"`
	TransitionedAt time.Time         `json:"transitionedAt"`
}

// DeliveryPayload is the stable JSON body posted to the partner endpoint.
// The same bytes are sent on every retry of a given transition event.
type DeliveryPayload struct {
	Version    int                     `json:"version"`
	Nonce      string                  `json:"nonce"`
	EventType  enums.DispatchEventType `json:"eventType"`
	OccurredAt time.Time               `json:"occurredAt"`
	Order      OrderSnapshot           `json:"order"`
}
