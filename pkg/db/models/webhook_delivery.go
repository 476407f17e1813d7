package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/pkg/enums"
)

// WebhookDelivery records one outbound delivery attempt of a transition
// event. Rows are append-only; the audit endpoints page over them by
// created_at.
type WebhookDelivery struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransitionID   uuid.UUID               `gorm:"column:transition_id;type:uuid;not null;index"`
	OrderID        uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index:ix_webhook_deliveries_order_created,priority:1"`
	EventType      enums.DispatchEventType `gorm:"column:event_type;type:dispatch_event_type;not null"`
	Endpoint       string                  `gorm:"column:endpoint;not null"`
	Nonce          string                  `gorm:"column:nonce;not null"`
	Payload        json.RawMessage         `gorm:"column:payload;type:jsonb;not null"`
	Attempt        int                     `gorm:"column:attempt;not null"`
	ResponseStatus *int                    `gorm:"column:response_status"`
	ResponseBody   *string                 `gorm:"column:response_body"`
	Success        bool                    `gorm:"column:success;not null;default:false"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime;index:ix_webhook_deliveries_order_created,priority:2"`
}
