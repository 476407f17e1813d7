package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	"github.com/printforge/printforge-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  session_key TEXT NOT NULL,
  idempotency_key TEXT NOT NULL UNIQUE,
  currency TEXT NOT NULL DEFAULT 'USD',
  subtotal_cents INTEGER NOT NULL,
  tax_cents INTEGER NOT NULL DEFAULT 0,
  shipping_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'created',
  payment_ref TEXT UNIQUE,
  version INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  transitioned_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  customization_id TEXT,
  qty INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  created_at DATETIME
);`

	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(orderItems).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, sessionKey string, status enums.OrderStatus, createdAt time.Time) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:             uuid.New(),
		SessionKey:     sessionKey,
		IdempotencyKey: uuid.NewString(),
		Currency:       enums.CurrencyUSD,
		SubtotalCents:  10000,
		TaxCents:       800,
		ShippingCents:  500,
		TotalCents:     11300,
		Status:         status,
		CreatedAt:      createdAt,
		TransitionedAt: createdAt,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepository_CreateAndFindByID(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := &models.Order{
		ID:             uuid.New(),
		SessionKey:     "sess_1",
		IdempotencyKey: "idem_1",
		Currency:       enums.CurrencyUSD,
		SubtotalCents:  6000,
		TotalCents:     6000,
		Status:         enums.OrderStatusCreated,
		CreatedAt:      time.Now().UTC(),
		TransitionedAt: time.Now().UTC(),
	}
	_, err := repo.Create(ctx, order)
	require.NoError(t, err)

	custom := "cust_7"
	require.NoError(t, repo.CreateItems(ctx, []models.OrderItem{
		{ID: uuid.New(), OrderID: order.ID, ProductID: "prod_mug", Name: "Custom Mug", CustomizationID: &custom, Qty: 2, UnitPriceCents: 3000, TotalCents: 6000, CreatedAt: time.Now().UTC()},
	}))

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, order.IdempotencyKey, found.IdempotencyKey)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "prod_mug", found.Items[0].ProductID)
}

func TestRepository_FindByIdempotencyKey_Missing(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	found, err := repo.FindByIdempotencyKey(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRepository_SetPaymentRefIfEmpty_FirstWriteWins(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, "sess_1", enums.OrderStatusCreated, time.Now().UTC())

	set, err := repo.SetPaymentRefIfEmpty(ctx, order.ID, "pi_first")
	require.NoError(t, err)
	assert.True(t, set)

	set, err = repo.SetPaymentRefIfEmpty(ctx, order.ID, "pi_second")
	require.NoError(t, err)
	assert.False(t, set)

	found, err := repo.FindByPaymentRef(ctx, "pi_first")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, order.ID, found.ID)

	missing, err := repo.FindByPaymentRef(ctx, "pi_second")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_SetPaymentRefIfEmpty_InvalidatesStagedCancel(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, "sess_1", enums.OrderStatusCreated, time.Now().UTC())

	// Cancel path reads the order before the charge response lands.
	staged, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Nil(t, staged.PaymentRef)

	set, err := repo.SetPaymentRefIfEmpty(ctx, order.ID, "pi_raced")
	require.NoError(t, err)
	require.True(t, set)

	// The stale version no longer matches, so the cancel commit loses.
	ok, err := repo.TransitionCAS(ctx, order.ID, staged.Status, staged.Version, enums.OrderStatusCancelled, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCreated, found.Status)
	assert.Equal(t, staged.Version+1, found.Version)
}

func TestRepository_TransitionCAS(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, "sess_1", enums.OrderStatusCreated, time.Now().UTC())

	ok, err := repo.TransitionCAS(ctx, order.ID, enums.OrderStatusCreated, 0, enums.OrderStatusPaid, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)

	// Stale expectations lose: status and version both moved on.
	ok, err = repo.TransitionCAS(ctx, order.ID, enums.OrderStatusCreated, 0, enums.OrderStatusFailed, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, enums.OrderStatusPaid, found.Status)
	assert.Equal(t, 1, found.Version)
}

func TestRepository_ListBySession_CursorPagination(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedOrder(t, db, "sess_list", enums.OrderStatusCreated, base.Add(time.Duration(i)*time.Minute))
	}
	seedOrder(t, db, "sess_other", enums.OrderStatusCreated, base)

	page1, err := repo.ListBySession(ctx, "sess_list", pagination.Params{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page1.Orders, 3)
	require.NotEmpty(t, page1.NextCursor)
	// Newest first.
	assert.True(t, page1.Orders[0].CreatedAt.After(page1.Orders[2].CreatedAt))

	page2, err := repo.ListBySession(ctx, "sess_list", pagination.Params{Limit: 3, Cursor: page1.NextCursor})
	require.NoError(t, err)
	require.Len(t, page2.Orders, 2)
	assert.Empty(t, page2.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, summary := range append(page1.Orders, page2.Orders...) {
		require.False(t, seen[summary.ID], "order %s returned twice", summary.ID)
		seen[summary.ID] = true
	}
}
