package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/internal/orders"
	pkgcheckout "github.com/printforge/printforge-backend/pkg/checkout"
	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
	"github.com/printforge/printforge-backend/pkg/gateway"
	"github.com/printforge/printforge-backend/pkg/logger"
	"github.com/printforge/printforge-backend/pkg/outbox"
	"github.com/printforge/printforge-backend/pkg/pagination"
)

type memoryRepo struct {
	byKey     map[string]*models.Order
	createErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byKey: map[string]*models.Order{}}
}

func (m *memoryRepo) WithTx(tx *gorm.DB) orders.Repository { return m }

func (m *memoryRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	if _, exists := m.byKey[order.IdempotencyKey]; exists {
		return nil, errors.New(`duplicate key value violates unique constraint "ux_orders_idempotency_key"`)
	}
	order.ID = uuid.New()
	order.CreatedAt = time.Now().UTC()
	order.TransitionedAt = order.CreatedAt
	m.byKey[order.IdempotencyKey] = order
	return order, nil
}

func (m *memoryRepo) CreateItems(ctx context.Context, items []models.OrderItem) error { return nil }

func (m *memoryRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	for _, order := range m.byKey {
		if order.ID == id {
			copied := *order
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memoryRepo) FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	if order, ok := m.byKey[key]; ok {
		copied := *order
		return &copied, nil
	}
	return nil, nil
}

func (m *memoryRepo) FindByPaymentRef(ctx context.Context, ref string) (*models.Order, error) {
	return nil, nil
}

func (m *memoryRepo) ListBySession(ctx context.Context, sessionKey string, params pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (m *memoryRepo) SetPaymentRefIfEmpty(ctx context.Context, id uuid.UUID, ref string) (bool, error) {
	for _, order := range m.byKey {
		if order.ID == id {
			if order.PaymentRef != nil {
				return false, nil
			}
			order.PaymentRef = &ref
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) TransitionCAS(ctx context.Context, id uuid.UUID, from enums.OrderStatus, version int, to enums.OrderStatus, at time.Time) (bool, error) {
	return false, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type stubOutbox struct {
	events []enums.DispatchEventType
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, eventType enums.DispatchEventType, snapshot outbox.OrderSnapshot) error {
	s.events = append(s.events, eventType)
	return nil
}

type stubGateway struct {
	calls   int
	failFor int
	nextRef string
}

func (s *stubGateway) Charge(ctx context.Context, params gateway.ChargeParams) (*gateway.ChargeResult, error) {
	s.calls++
	if s.calls <= s.failFor {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayUnavailable, "gateway down")
	}
	ref := s.nextRef
	if ref == "" {
		sum := sha256.Sum256([]byte(params.IdempotencyKey))
		ref = "pi_" + hex.EncodeToString(sum[:4])
	}
	return &gateway.ChargeResult{PaymentRef: ref, Status: "requires_confirmation"}, nil
}

func testCart() pkgcheckout.Cart {
	return pkgcheckout.Cart{
		SessionKey: "sess_checkout",
		Currency:   enums.CurrencyUSD,
		Items: []pkgcheckout.CartItem{
			{ProductID: "prod_poster", Name: "Poster", Qty: 2, UnitPriceCents: 1500},
			{ProductID: "prod_mug", Name: "Mug", CustomizationID: "cust_1", Qty: 1, UnitPriceCents: 2000},
		},
	}
}

func newCheckoutService(t *testing.T, repo *memoryRepo, gw *stubGateway) (Service, *stubOutbox) {
	t.Helper()
	ob := &stubOutbox{}
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel})
	svc, err := NewService(repo, stubTx{}, ob, gw, nil, nil, logg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, ob
}

func TestExecute_CreatesOrderAndCharges(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	gw := &stubGateway{}
	svc, ob := newCheckoutService(t, repo, gw)

	order, err := svc.Execute(context.Background(), ExecuteInput{Cart: testCart()})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if order.Status != enums.OrderStatusCreated {
		t.Fatalf("expected created, got %s", order.Status)
	}
	if order.TotalCents != 5000 {
		t.Fatalf("expected total 5000, got %d", order.TotalCents)
	}
	if order.PaymentRef == nil {
		t.Fatal("expected payment ref recorded")
	}
	if gw.calls != 1 {
		t.Fatalf("expected one charge, got %d", gw.calls)
	}
	if len(ob.events) != 1 || ob.events[0] != enums.DispatchEventOrderCreated {
		t.Fatalf("expected order.created event, got %v", ob.events)
	}
}

func TestExecute_SameKeyReturnsSameOrderWithoutSecondCharge(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	gw := &stubGateway{}
	svc, _ := newCheckoutService(t, repo, gw)
	input := ExecuteInput{Cart: testCart(), IdempotencyKey: "abc"}

	first, err := svc.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	second, err := svc.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same order, got %s and %s", first.ID, second.ID)
	}
	if gw.calls != 1 {
		t.Fatalf("expected exactly one charge, got %d", gw.calls)
	}
}

func TestExecute_GatewayFailureLeavesOrderRetriable(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	gw := &stubGateway{failFor: 1}
	svc, _ := newCheckoutService(t, repo, gw)
	input := ExecuteInput{Cart: testCart(), IdempotencyKey: "retry-key"}

	_, err := svc.Execute(context.Background(), input)
	if !pkgerrors.HasCode(err, pkgerrors.CodeGatewayUnavailable) {
		t.Fatalf("expected GATEWAY_UNAVAILABLE, got %v", err)
	}

	stored, err := repo.FindByIdempotencyKey(context.Background(), "retry-key")
	if err != nil || stored == nil {
		t.Fatalf("expected order persisted, got %v / %v", stored, err)
	}
	if stored.Status != enums.OrderStatusCreated || stored.PaymentRef != nil {
		t.Fatalf("order should stay created without ref, got %s / %v", stored.Status, stored.PaymentRef)
	}

	// Retrying the same key picks up the existing order and charges it.
	retried, err := svc.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("retried Execute: %v", err)
	}
	if retried.ID != stored.ID {
		t.Fatalf("expected same order on retry, got %s and %s", retried.ID, stored.ID)
	}
	if retried.PaymentRef == nil {
		t.Fatal("expected payment ref after retry")
	}
	if gw.calls != 2 {
		t.Fatalf("expected two charge attempts, got %d", gw.calls)
	}
}

func TestExecute_InvalidCart(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo()
	svc, _ := newCheckoutService(t, repo, &stubGateway{})

	cart := testCart()
	cart.Items = nil
	_, err := svc.Execute(context.Background(), ExecuteInput{Cart: cart})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidCart) {
		t.Fatalf("expected INVALID_CART, got %v", err)
	}
	if len(repo.byKey) != 0 {
		t.Fatal("no order should be created for an invalid cart")
	}
}

func TestDeriveIdempotencyKey_StableAcrossItemOrder(t *testing.T) {
	t.Parallel()

	cart := testCart()
	reordered := testCart()
	reordered.Items[0], reordered.Items[1] = reordered.Items[1], reordered.Items[0]

	if DeriveIdempotencyKey(cart) != DeriveIdempotencyKey(reordered) {
		t.Fatal("expected identical keys for reordered items")
	}

	changed := testCart()
	changed.Items[0].Qty = 3
	if DeriveIdempotencyKey(cart) == DeriveIdempotencyKey(changed) {
		t.Fatal("expected different keys for different carts")
	}
}
