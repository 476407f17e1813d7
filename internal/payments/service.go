package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/printforge/printforge-backend/internal/orders"
	dbpkg "github.com/printforge/printforge-backend/pkg/db"
	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
	"github.com/printforge/printforge-backend/pkg/logger"
)

const guardConsumer = "payments-reconciler"

type transitioner interface {
	Transition(ctx context.Context, input orders.TransitionInput) (*models.Order, error)
}

type orderLookup interface {
	FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error)
}

type idempotencyGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

// EventInput is a verified inbound gateway notification.
type EventInput struct {
	GatewayEventID string
	Type           enums.PaymentEventType
	PaymentRef     string
	Payload        json.RawMessage
}

// Service reconciles gateway payment events against orders and drives the
// matching lifecycle transitions.
type Service interface {
	Process(ctx context.Context, input EventInput) error
	RematchPending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
	MarkOrphans(ctx context.Context, olderThan time.Duration) (int64, error)
}

type service struct {
	repo    Repository
	ordersS transitioner
	lookup  orderLookup
	guard   idempotencyGuard
	logg    *logger.Logger
}

// NewService builds the payment reconciler with the required dependencies.
func NewService(repo Repository, ordersSvc transitioner, lookup orderLookup, guard idempotencyGuard, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if ordersSvc == nil {
		return nil, fmt.Errorf("orders transitioner required")
	}
	if lookup == nil {
		return nil, fmt.Errorf("order lookup required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, ordersS: ordersSvc, lookup: lookup, guard: guard, logg: logg}, nil
}

// Process handles one inbound event exactly once. Duplicate deliveries are
// acknowledged without touching any order: the Redis guard catches most of
// them cheaply, and the unique index on the gateway event id catches the rest.
func (s *service) Process(ctx context.Context, input EventInput) error {
	if input.GatewayEventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway event id is required")
	}
	logCtx := s.logg.WithEventID(ctx, input.GatewayEventID)

	if s.guard != nil {
		already, err := s.guard.CheckAndMarkProcessed(ctx, guardConsumer, input.GatewayEventID)
		if err != nil {
			// Redis being down only costs us the fast path.
			s.logg.Warn(logCtx, "idempotency guard unavailable, falling back to durable dedup")
		} else if already {
			s.logg.Info(logCtx, "duplicate payment event ignored")
			return nil
		}
	}

	event := &models.PaymentEvent{
		GatewayEventID: input.GatewayEventID,
		Type:           input.Type,
		PaymentRef:     input.PaymentRef,
		Payload:        input.Payload,
		Status:         enums.PaymentEventStatusPending,
		ReceivedAt:     time.Now().UTC(),
	}
	if _, err := s.repo.Insert(ctx, event); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_payment_events_gateway_event_id") {
			s.logg.Info(logCtx, "duplicate payment event ignored")
			return nil
		}
		s.unguard(ctx, input.GatewayEventID)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting payment event")
	}

	if err := s.match(ctx, event); err != nil {
		s.unguard(ctx, input.GatewayEventID)
		return err
	}
	return nil
}

// match resolves the event's order and applies the transition. Events with no
// matching order stay pending for the settlement cron.
func (s *service) match(ctx context.Context, event *models.PaymentEvent) error {
	logCtx := s.logg.WithEventID(ctx, event.GatewayEventID)

	order, err := s.lookup.FindByPaymentRef(ctx, event.PaymentRef)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "matching payment event")
	}
	if order == nil {
		s.logg.Info(logCtx, "payment event has no matching order yet")
		return nil
	}

	trigger, ok := triggerForEvent(event.Type)
	if ok {
		ref := event.PaymentRef
		_, err = s.ordersS.Transition(ctx, orders.TransitionInput{
			OrderID:    order.ID,
			Trigger:    trigger,
			PaymentRef: &ref,
		})
		if err != nil {
			// The order already moved on (e.g. a duplicated success after
			// paid). The event is still matched; nothing else to do.
			if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
				return err
			}
			s.logg.Info(s.logg.WithOrderID(logCtx, order.ID.String()), "payment event acknowledged without transition")
		}
	}

	if err := s.repo.MarkMatched(ctx, event.ID, order.ID, time.Now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking payment event matched")
	}
	return nil
}

// RematchPending retries events that arrived before their order's payment ref
// was recorded. Returns how many events were matched this pass.
func (s *service) RematchPending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	pending, err := s.repo.ListPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing pending payment events")
	}

	matched := 0
	for i := range pending {
		event := pending[i]
		if err := s.match(ctx, &event); err != nil {
			s.logg.Error(s.logg.WithEventID(ctx, event.GatewayEventID), "rematching payment event failed", err)
			continue
		}
		refreshed, err := s.repo.FindByGatewayEventID(ctx, event.GatewayEventID)
		if err == nil && refreshed != nil && refreshed.Status == enums.PaymentEventStatusMatched {
			matched++
		}
	}
	return matched, nil
}

// MarkOrphans flags pending events past the orphan age so operators can see
// money that never found an order.
func (s *service) MarkOrphans(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	count, err := s.repo.MarkOrphanedBefore(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking orphaned payment events")
	}
	if count > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "count", count), "payment events marked orphaned")
	}
	return count, nil
}

func (s *service) unguard(ctx context.Context, eventID string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Delete(ctx, guardConsumer, eventID); err != nil {
		s.logg.Warn(s.logg.WithEventID(ctx, eventID), "failed to release idempotency guard")
	}
}

func triggerForEvent(eventType enums.PaymentEventType) (orders.Trigger, bool) {
	switch eventType {
	case enums.PaymentEventTypeSucceeded:
		return orders.TriggerPaymentSucceeded, true
	case enums.PaymentEventTypeFailed:
		return orders.TriggerPaymentFailed, true
	default:
		return "", false
	}
}
