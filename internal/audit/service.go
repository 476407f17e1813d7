package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
	"github.com/printforge/printforge-backend/pkg/logger"
)

type outboxRequeuer interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.TransitionEvent, error)
	Requeue(ctx context.Context, id uuid.UUID, now time.Time) (int64, error)
}

// Service exposes the delivery audit log and the manual redispatch path.
type Service interface {
	List(ctx context.Context, params ListParams) (*DeliveryList, error)
	Redispatch(ctx context.Context, transitionID uuid.UUID) error
}

type service struct {
	repo   Repository
	outbox outboxRequeuer
	logg   *logger.Logger
}

// NewService builds the audit service with the required dependencies.
func NewService(repo Repository, outbox outboxRequeuer, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, outbox: outbox, logg: logg}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*DeliveryList, error) {
	list, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing webhook deliveries")
	}
	return list, nil
}

// Redispatch puts an exhausted transition event back in the worker's queue.
// The delivery keeps its nonce and payload and continues the attempt sequence.
func (s *service) Redispatch(ctx context.Context, transitionID uuid.UUID) error {
	event, err := s.outbox.FindByID(ctx, transitionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading transition event")
	}
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "transition event not found")
	}
	if event.Status != enums.DispatchStatusExhausted {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("transition event is %s, only exhausted events can be redispatched", event.Status))
	}

	affected, err := s.outbox.Requeue(ctx, transitionID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "requeueing transition event")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "transition event changed concurrently")
	}

	logCtx := s.logg.WithOrderID(ctx, event.OrderID.String())
	logCtx = s.logg.WithField(logCtx, "transition_id", transitionID.String())
	logCtx = s.logg.WithField(logCtx, "attempt_count", event.AttemptCount)
	s.logg.Info(logCtx, "transition event requeued for redispatch")
	return nil
}
