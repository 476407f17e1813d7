package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/pkg/enums"
)

// PaymentEvent is a received gateway notification. The gateway-assigned event
// id is the natural dedup key; many events may reference one order but at most
// one is applied per terminal outcome. Non-owning association: rows reference
// an order by payment_ref only.
type PaymentEvent struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GatewayEventID string                   `gorm:"column:gateway_event_id;not null;uniqueIndex:ux_payment_events_gateway_event_id"`
	Type           enums.PaymentEventType   `gorm:"column:type;type:payment_event_type;not null"`
	PaymentRef     string                   `gorm:"column:payment_ref;not null;index"`
	Payload        json.RawMessage          `gorm:"column:payload;type:jsonb;not null"`
	Status         enums.PaymentEventStatus `gorm:"column:status;type:payment_event_status;not null;default:'pending'"`
	OrderID        *uuid.UUID               `gorm:"column:order_id;type:uuid"`
	ReceivedAt     time.Time                `gorm:"column:received_at;autoCreateTime"`
	MatchedAt      *time.Time               `gorm:"column:matched_at"`
}
