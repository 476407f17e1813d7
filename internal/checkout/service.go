package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/internal/orders"
	"github.com/printforge/printforge-backend/internal/pricing"
	pkgcheckout "github.com/printforge/printforge-backend/pkg/checkout"
	dbpkg "github.com/printforge/printforge-backend/pkg/db"
	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
	"github.com/printforge/printforge-backend/pkg/gateway"
	"github.com/printforge/printforge-backend/pkg/logger"
	"github.com/printforge/printforge-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, eventType enums.DispatchEventType, snapshot outbox.OrderSnapshot) error
}

type gatewayCharger interface {
	Charge(ctx context.Context, params gateway.ChargeParams) (*gateway.ChargeResult, error)
}

// ExecuteInput is one checkout attempt for a session's cart snapshot.
type ExecuteInput struct {
	Cart pkgcheckout.Cart
	// IdempotencyKey is client-supplied; when empty a deterministic key is
	// derived from the session and cart content.
	IdempotencyKey string
}

// Service turns a validated cart into a priced order and requests the charge.
type Service interface {
	Execute(ctx context.Context, input ExecuteInput) (*models.Order, error)
}

type service struct {
	repo     orders.Repository
	tx       txRunner
	outbox   outboxPublisher
	gateway  gatewayCharger
	tax      pricing.TaxPolicy
	shipping pricing.ShippingPolicy
	logg     *logger.Logger
}

// NewService builds the checkout orchestrator with the required dependencies.
func NewService(repo orders.Repository, tx txRunner, outboxSvc outboxPublisher, charger gatewayCharger, tax pricing.TaxPolicy, shipping pricing.ShippingPolicy, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if charger == nil {
		return nil, fmt.Errorf("gateway charger required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outboxSvc,
		gateway:  charger,
		tax:      tax,
		shipping: shipping,
		logg:     logg,
	}, nil
}

// Execute is safely retriable: the same idempotency key always resolves to the
// same order, and the gateway sees at most one effective charge per order.
func (s *service) Execute(ctx context.Context, input ExecuteInput) (*models.Order, error) {
	breakdown, err := pricing.ComputeTotal(input.Cart, s.tax, s.shipping)
	if err != nil {
		return nil, err
	}

	key := strings.TrimSpace(input.IdempotencyKey)
	if key == "" {
		key = DeriveIdempotencyKey(input.Cart)
	}

	existing, err := s.repo.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up idempotency key")
	}
	if existing != nil {
		return s.settleCharge(ctx, existing, key)
	}

	order := &models.Order{
		SessionKey:     input.Cart.SessionKey,
		IdempotencyKey: key,
		Currency:       input.Cart.Currency,
		SubtotalCents:  breakdown.SubtotalCents,
		TaxCents:       breakdown.TaxCents,
		ShippingCents:  breakdown.ShippingCents,
		TotalCents:     breakdown.TotalCents,
		Status:         enums.OrderStatusCreated,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		created, createErr := txRepo.Create(ctx, order)
		if createErr != nil {
			return createErr
		}
		items := make([]models.OrderItem, 0, len(input.Cart.Items))
		for _, line := range input.Cart.Items {
			item := models.OrderItem{
				OrderID:        created.ID,
				ProductID:      line.ProductID,
				Name:           line.Name,
				Qty:            line.Qty,
				UnitPriceCents: line.UnitPriceCents,
				TotalCents:     pricing.LineTotalCents(line),
			}
			if line.CustomizationID != "" {
				custom := line.CustomizationID
				item.CustomizationID = &custom
			}
			items = append(items, item)
		}
		if createErr := txRepo.CreateItems(ctx, items); createErr != nil {
			return createErr
		}
		order.Items = items
		return s.outbox.Emit(ctx, tx, enums.DispatchEventOrderCreated, orders.SnapshotOf(order))
	})
	if err != nil {
		// Two clients raced the same key; the winner's order is the answer.
		if dbpkg.IsUniqueViolation(err, "ux_orders_idempotency_key") {
			winner, findErr := s.repo.FindByIdempotencyKey(ctx, key)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "resolving idempotency race")
			}
			if winner != nil {
				return s.settleCharge(ctx, winner, key)
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order")
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithSessionKey(logCtx, order.SessionKey)
	s.logg.Info(logCtx, "order created")

	return s.settleCharge(ctx, order, key)
}

// settleCharge requests the gateway charge for orders that do not yet carry a
// payment reference. A retried checkout whose earlier charge succeeded is
// returned as-is; the gateway-side idempotency key absorbs the rest.
func (s *service) settleCharge(ctx context.Context, order *models.Order, key string) (*models.Order, error) {
	if order.PaymentRef != nil {
		return order, nil
	}
	if order.Status != enums.OrderStatusCreated {
		return order, nil
	}

	result, err := s.gateway.Charge(ctx, gateway.ChargeParams{
		OrderID:        order.ID,
		SessionKey:     order.SessionKey,
		AmountCents:    order.TotalCents,
		Currency:       order.Currency,
		IdempotencyKey: key,
	})
	if err != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Error(logCtx, "gateway charge failed", err)
		return nil, err
	}

	set, err := s.repo.SetPaymentRefIfEmpty(ctx, order.ID, result.PaymentRef)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording payment reference")
	}
	if set {
		ref := result.PaymentRef
		order.PaymentRef = &ref
	} else {
		refreshed, findErr := s.repo.FindByID(ctx, order.ID)
		if findErr == nil && refreshed != nil {
			order.PaymentRef = refreshed.PaymentRef
		}
	}
	return order, nil
}

// DeriveIdempotencyKey hashes the session and the canonicalized cart lines so
// the same cart content always maps to the same key.
func DeriveIdempotencyKey(cart pkgcheckout.Cart) string {
	lines := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, fmt.Sprintf("%s|%s|%d|%d", item.ProductID, item.CustomizationID, item.Qty, item.UnitPriceCents))
	}
	sort.Strings(lines)
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|", cart.SessionKey, cart.Currency)
	for _, line := range lines {
		fmt.Fprintln(h, line)
	}
	return hex.EncodeToString(h.Sum(nil))
}
