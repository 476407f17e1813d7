package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/pkg/enums"
)

// TransitionEvent is the outbox row written in the same transaction as a
// committed order transition. The dispatch worker drains rows per order in
// creation order; Nonce is the stable delivery identifier carried on every
// attempt so the partner can deduplicate retries.
type TransitionEvent struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	EventType     enums.DispatchEventType `gorm:"column:event_type;type:dispatch_event_type;not null"`
	Nonce         string                  `gorm:"column:nonce;not null;uniqueIndex:ux_transition_events_nonce"`
	Payload       json.RawMessage         `gorm:"column:payload;type:jsonb;not null"`
	Status        enums.DispatchStatus    `gorm:"column:status;type:dispatch_status;not null;default:'pending'"`
	AttemptCount  int                     `gorm:"column:attempt_count;not null;default:0"`
	NextAttemptAt time.Time               `gorm:"column:next_attempt_at;not null;default:now()"`
	LastError     *string                 `gorm:"column:last_error"`
	DeliveredAt   *time.Time              `gorm:"column:delivered_at"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
}
