package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem captures the snapshot of one cart line at order-creation time.
// Immutable; exists only as a child of an Order.
type OrderItem struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID       string    `gorm:"column:product_id;not null"`
	Name            string    `gorm:"column:name;not null"`
	CustomizationID *string   `gorm:"column:customization_id"`
	Qty             int       `gorm:"column:qty;not null"`
	UnitPriceCents  int64     `gorm:"column:unit_price_cents;not null"`
	TotalCents      int64     `gorm:"column:total_cents;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}
