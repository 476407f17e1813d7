package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
	"github.com/printforge/printforge-backend/pkg/logger"
	"github.com/printforge/printforge-backend/pkg/outbox"
	"github.com/printforge/printforge-backend/pkg/pagination"
)

// casRetries bounds how many times a transition re-reads and retries after
// losing the compare-and-set race.
const casRetries = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, eventType enums.DispatchEventType, snapshot outbox.OrderSnapshot) error
}

// Service defines order lifecycle operations beyond repository reads.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListBySession(ctx context.Context, sessionKey string, params pagination.Params) (*OrderList, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewService builds an order lifecycle service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListBySession(ctx context.Context, sessionKey string, params pagination.Params) (*OrderList, error) {
	if sessionKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session key is required")
	}
	list, err := s.repo.ListBySession(ctx, sessionKey, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	return list, nil
}

// Transition applies a lifecycle trigger through the transition table and
// commits it with compare-and-set on (id, status, version). Losing the race
// re-reads the order and re-evaluates the trigger against the fresh state.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		order, err := s.repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order for transition")
		}
		if order == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		next, err := Next(order.Status, input.Trigger)
		if err != nil {
			logCtx := s.logg.WithOrderID(ctx, order.ID.String())
			logCtx = s.logg.WithField(logCtx, "trigger", string(input.Trigger))
			logCtx = s.logg.WithField(logCtx, "status", string(order.Status))
			s.logg.Warn(logCtx, "transition rejected")
			return nil, err
		}
		if err := checkGuards(order, input); err != nil {
			return nil, err
		}

		eventType, err := enums.DispatchEventForStatus(next)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolving dispatch event")
		}

		now := time.Now().UTC()
		committed := false
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			ok, casErr := s.repo.WithTx(tx).TransitionCAS(ctx, order.ID, order.Status, order.Version, next, now)
			if casErr != nil {
				return casErr
			}
			if !ok {
				return nil
			}
			committed = true
			order.Status = next
			order.Version++
			order.TransitionedAt = now
			return s.outbox.Emit(ctx, tx, eventType, SnapshotOf(order))
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "committing transition")
		}
		if committed {
			logCtx := s.logg.WithOrderID(ctx, order.ID.String())
			logCtx = s.logg.WithField(logCtx, "status", string(next))
			s.logg.Info(logCtx, "order transitioned")
			return order, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeStaleTransition, "order changed concurrently, retries exhausted")
}

// Cancel is the created-only cancellation path exposed to clients.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.Transition(ctx, TransitionInput{OrderID: orderID, Trigger: TriggerCancel})
}

func checkGuards(order *models.Order, input TransitionInput) error {
	switch input.Trigger {
	case TriggerPaymentSucceeded, TriggerPaymentFailed:
		if input.PaymentRef != nil {
			if order.PaymentRef == nil || *order.PaymentRef != *input.PaymentRef {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "payment reference does not match order")
			}
		}
	case TriggerCancel:
		if order.PaymentRef != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order with a payment reference cannot be cancelled")
		}
	}
	return nil
}

// SnapshotOf freezes the order into the shape embedded in delivery payloads.
func SnapshotOf(order *models.Order) outbox.OrderSnapshot {
	items := make([]outbox.ItemSnapshot, 0, len(order.Items))
	for _, item := range order.Items {
		snapshot := outbox.ItemSnapshot{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
		}
		if item.CustomizationID != nil {
			snapshot.CustomizationID = *item.CustomizationID
		}
		items = append(items, snapshot)
	}
	return outbox.OrderSnapshot{
		ID:             order.ID,
		SessionKey:     order.SessionKey,
		Status:         order.Status,
		Currency:       order.Currency,
		SubtotalCents:  order.SubtotalCents,
		TaxCents:       order.TaxCents,
		ShippingCents:  order.ShippingCents,
		TotalCents:     order.TotalCents,
		Items:          items,
		TransitionedAt: order.TransitionedAt,
	}
}
