package fulfillment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/internal/orders"
	"github.com/printforge/printforge-backend/pkg/db/models"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
	"github.com/printforge/printforge-backend/pkg/logger"
)

const guardConsumer = "fulfillment-events"

// EventType names the partner-side milestones that move an order forward.
type EventType string

const (
	EventAccepted  EventType = "fulfillment.accepted"
	EventCompleted EventType = "fulfillment.completed"
	EventShipped   EventType = "fulfillment.shipped"
	EventDelivered EventType = "fulfillment.delivered"
)

type transitioner interface {
	Transition(ctx context.Context, input orders.TransitionInput) (*models.Order, error)
}

type idempotencyGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

// EventInput is a signature-verified inbound partner event.
type EventInput struct {
	EventID string
	OrderID uuid.UUID
	Type    EventType
}

// Service applies fulfillment partner milestones to the order lifecycle.
type Service interface {
	Process(ctx context.Context, input EventInput) error
}

type service struct {
	ordersS transitioner
	guard   idempotencyGuard
	logg    *logger.Logger
}

// NewService builds the fulfillment event handler.
func NewService(ordersSvc transitioner, guard idempotencyGuard, logg *logger.Logger) (Service, error) {
	if ordersSvc == nil {
		return nil, fmt.Errorf("orders transitioner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{ordersS: ordersSvc, guard: guard, logg: logg}, nil
}

// Process applies one partner event. Redeliveries acknowledge without a second
// transition: the guard handles the fast path and the state machine rejects
// whatever slips through as a no-op.
func (s *service) Process(ctx context.Context, input EventInput) error {
	if input.EventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	trigger, err := triggerFor(input.Type)
	if err != nil {
		return err
	}

	logCtx := s.logg.WithEventID(ctx, input.EventID)
	logCtx = s.logg.WithOrderID(logCtx, input.OrderID.String())

	if s.guard != nil {
		already, guardErr := s.guard.CheckAndMarkProcessed(ctx, guardConsumer, input.EventID)
		if guardErr != nil {
			s.logg.Warn(logCtx, "idempotency guard unavailable for fulfillment event")
		} else if already {
			s.logg.Info(logCtx, "duplicate fulfillment event ignored")
			return nil
		}
	}

	if _, err := s.ordersS.Transition(ctx, orders.TransitionInput{OrderID: input.OrderID, Trigger: trigger}); err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
			s.logg.Info(logCtx, "fulfillment event acknowledged without transition")
			return nil
		}
		if s.guard != nil {
			if delErr := s.guard.Delete(ctx, guardConsumer, input.EventID); delErr != nil {
				s.logg.Warn(logCtx, "failed to release fulfillment event guard")
			}
		}
		return err
	}
	s.logg.Info(logCtx, "fulfillment event applied")
	return nil
}

func triggerFor(eventType EventType) (orders.Trigger, error) {
	switch eventType {
	case EventAccepted:
		return orders.TriggerProductionStarted, nil
	case EventCompleted:
		return orders.TriggerFulfillmentCompleted, nil
	case EventShipped:
		return orders.TriggerShipped, nil
	case EventDelivered:
		return orders.TriggerDelivered, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown fulfillment event type %q", eventType))
	}
}
