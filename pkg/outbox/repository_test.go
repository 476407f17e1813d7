package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	events := `
CREATE TABLE IF NOT EXISTS transition_events (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  nonce TEXT NOT NULL UNIQUE,
  payload TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  attempt_count INTEGER NOT NULL DEFAULT 0,
  next_attempt_at DATETIME NOT NULL,
  last_error TEXT,
  delivered_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(events).Error)
	return db
}

func seedEvent(t *testing.T, db *gorm.DB, orderID uuid.UUID, status enums.DispatchStatus, createdAt time.Time) models.TransitionEvent {
	t.Helper()
	row := models.TransitionEvent{
		ID:            uuid.New(),
		OrderID:       orderID,
		EventType:     enums.DispatchEventOrderPaid,
		Nonce:         uuid.NewString(),
		Payload:       []byte(`{}`),
		Status:        status,
		NextAttemptAt: createdAt,
		CreatedAt:     createdAt,
	}
	require.NoError(t, db.Create(&row).Error)
	return row
}

func TestFetchDispatchable_HeadOfLinePerOrder(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	base := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

	orderA := uuid.New()
	orderB := uuid.New()
	first := seedEvent(t, db, orderA, enums.DispatchStatusPending, base)
	seedEvent(t, db, orderA, enums.DispatchStatusPending, base.Add(time.Second))
	other := seedEvent(t, db, orderB, enums.DispatchStatusPending, base.Add(2*time.Second))

	rows, err := repo.FetchDispatchable(db, 10, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, other.ID, rows[1].ID)
}

func TestFetchDispatchable_BackoffHeadBlocksOrder(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	base := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

	orderID := uuid.New()
	head := seedEvent(t, db, orderID, enums.DispatchStatusPending, base)
	seedEvent(t, db, orderID, enums.DispatchStatusPending, base.Add(time.Second))

	// Head in backoff until base+1m; the newer event must not overtake it.
	require.NoError(t, db.Model(&models.TransitionEvent{}).
		Where("id = ?", head.ID).
		Update("next_attempt_at", base.Add(time.Minute)).Error)

	rows, err := repo.FetchDispatchable(db, 10, base.Add(30*time.Second))
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = repo.FetchDispatchable(db, 10, base.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, head.ID, rows[0].ID)
}

func TestFetchDispatchable_TerminalHeadUnblocksOrder(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	base := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

	orderID := uuid.New()
	seedEvent(t, db, orderID, enums.DispatchStatusExhausted, base)
	next := seedEvent(t, db, orderID, enums.DispatchStatusPending, base.Add(time.Second))

	rows, err := repo.FetchDispatchable(db, 10, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, next.ID, rows[0].ID)
}

func TestMarkFailedThenDelivered(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	base := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

	event := seedEvent(t, db, uuid.New(), enums.DispatchStatusPending, base)

	require.NoError(t, repo.MarkFailedTx(db, event.ID, errors.New("connection refused"), base.Add(2*time.Second)))

	var failed models.TransitionEvent
	require.NoError(t, db.First(&failed, "id = ?", event.ID).Error)
	assert.Equal(t, enums.DispatchStatusPending, failed.Status)
	assert.Equal(t, 1, failed.AttemptCount)
	require.NotNil(t, failed.LastError)
	assert.Contains(t, *failed.LastError, "connection refused")

	deliveredAt := base.Add(5 * time.Second)
	require.NoError(t, repo.MarkDeliveredTx(db, event.ID, deliveredAt))

	var delivered models.TransitionEvent
	require.NoError(t, db.First(&delivered, "id = ?", event.ID).Error)
	assert.Equal(t, enums.DispatchStatusDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)
}

func TestRequeue_OnlyExhaustedAndKeepsAttemptCount(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

	event := seedEvent(t, db, uuid.New(), enums.DispatchStatusExhausted, base)
	require.NoError(t, db.Model(&models.TransitionEvent{}).
		Where("id = ?", event.ID).
		Update("attempt_count", 5).Error)

	affected, err := repo.Requeue(ctx, event.ID, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	var requeued models.TransitionEvent
	require.NoError(t, db.First(&requeued, "id = ?", event.ID).Error)
	assert.Equal(t, enums.DispatchStatusPending, requeued.Status)
	assert.Equal(t, 5, requeued.AttemptCount)
	assert.Equal(t, event.Nonce, requeued.Nonce)

	// Second requeue is a no-op: the event is pending again.
	affected, err = repo.Requeue(ctx, event.ID, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, affected)
}

func TestDeleteDeliveredBefore_SparesExhausted(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

	old := seedEvent(t, db, uuid.New(), enums.DispatchStatusDelivered, base.Add(-48*time.Hour))
	require.NoError(t, db.Model(&models.TransitionEvent{}).
		Where("id = ?", old.ID).
		Update("delivered_at", base.Add(-48*time.Hour)).Error)
	recent := seedEvent(t, db, uuid.New(), enums.DispatchStatusDelivered, base)
	require.NoError(t, db.Model(&models.TransitionEvent{}).
		Where("id = ?", recent.ID).
		Update("delivered_at", base).Error)
	exhausted := seedEvent(t, db, uuid.New(), enums.DispatchStatusExhausted, base.Add(-72*time.Hour))

	deleted, err := repo.DeleteDeliveredBefore(ctx, db, base.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []models.TransitionEvent
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 2)
	ids := []uuid.UUID{remaining[0].ID, remaining[1].ID}
	assert.Contains(t, ids, recent.ID)
	assert.Contains(t, ids, exhausted.ID)
}
