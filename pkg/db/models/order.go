package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/pkg/enums"
)

// Order is the durable record of a checkout, driven through the lifecycle
// state machine. Rows are never deleted; TotalCents and the item snapshot are
// frozen at creation and PaymentRef is written at most once.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SessionKey     string            `gorm:"column:session_key;not null;index"`
	IdempotencyKey string            `gorm:"column:idempotency_key;not null;uniqueIndex:ux_orders_idempotency_key"`
	Currency       enums.Currency    `gorm:"column:currency;type:text;not null;default:'USD'"`
	SubtotalCents  int64             `gorm:"column:subtotal_cents;not null"`
	TaxCents       int64             `gorm:"column:tax_cents;not null;default:0"`
	ShippingCents  int64             `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents     int64             `gorm:"column:total_cents;not null"`
	Status         enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'created'"`
	PaymentRef     *string           `gorm:"column:payment_ref;uniqueIndex:ux_orders_payment_ref"`
	Version        int               `gorm:"column:version;not null;default:0"`
	Items          []OrderItem       `gorm:"foreignKey:OrderID"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	TransitionedAt time.Time         `gorm:"column:transitioned_at;autoCreateTime"`
}
