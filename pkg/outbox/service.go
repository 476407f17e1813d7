package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	"github.com/printforge/printforge-backend/pkg/logger"
)

const payloadVersion = 1

type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit queues a transition event inside the caller's transaction. The order
// snapshot is serialized once here; retries replay the stored bytes.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, eventType enums.DispatchEventType, snapshot OrderSnapshot) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	nonce := uuid.NewString()
	payload := DeliveryPayload{
		Version:    payloadVersion,
		Nonce:      nonce,
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Order:      snapshot,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	row := models.TransitionEvent{
		OrderID:       snapshot.ID,
		EventType:     eventType,
		Nonce:         nonce,
		Payload:       json.RawMessage(payloadJSON),
		Status:        enums.DispatchStatusPending,
		NextAttemptAt: time.Now().UTC(),
	}
	if err := s.repo.InsertTx(tx, row); err != nil {
		return err
	}
	if s.logg != nil {
		fields := map[string]any{
			"nonce":      nonce,
			"event_type": eventType,
			"order_id":   snapshot.ID.String(),
			"status":     snapshot.Status,
		}
		logCtx := s.logg.WithFields(ctx, fields)
		s.logg.Info(logCtx, "transition event queued")
	}
	return nil
}
