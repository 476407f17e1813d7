package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) InsertTx(tx *gorm.DB, event models.TransitionEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&event).Error
}

// FetchDispatchable returns pending events whose backoff window has elapsed.
// For each order only the oldest pending event is eligible, so deliveries for
// one order never overtake each other.
func (r *Repository) FetchDispatchable(tx *gorm.DB, limit int, now time.Time) ([]models.TransitionEvent, error) {
	if tx == nil {
		tx = r.db
	}
	var rows []models.TransitionEvent
	err := tx.Where("status = ?", enums.DispatchStatusPending).
		Where("next_attempt_at <= ?", now).
		Where(`NOT EXISTS (
			SELECT 1 FROM transition_events older
			WHERE older.order_id = transition_events.order_id
			  AND older.status = ?
			  AND (older.created_at < transition_events.created_at
			       OR (older.created_at = transition_events.created_at AND older.id < transition_events.id))
		)`, enums.DispatchStatusPending).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkDeliveredTx(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.TransitionEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        enums.DispatchStatusDelivered,
			"delivered_at":  at,
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"last_error":    nil,
		}).Error
}

func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, deliveryErr error, nextAttemptAt time.Time) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.TransitionEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":      deliveryErr.Error(),
			"attempt_count":   gorm.Expr("attempt_count + 1"),
			"next_attempt_at": nextAttemptAt,
		}).Error
}

func (r *Repository) MarkExhaustedTx(tx *gorm.DB, id uuid.UUID, deliveryErr error) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.TransitionEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        enums.DispatchStatusExhausted,
			"last_error":    deliveryErr.Error(),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// CountPending feeds the dispatch backlog gauge.
func (r *Repository) CountPending(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var n int64
	err := r.db.WithContext(ctx).Model(&models.TransitionEvent{}).
		Where("status = ?", enums.DispatchStatusPending).
		Count(&n).Error
	return n, err
}

// DeleteDeliveredBefore purges delivered events older than the cutoff.
// Exhausted events are kept so they stay visible for redispatch.
func (r *Repository) DeleteDeliveredBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Where("status = ? AND delivered_at < ?", enums.DispatchStatusDelivered, cutoff).
		Delete(&models.TransitionEvent{})
	return result.RowsAffected, result.Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.TransitionEvent, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var event models.TransitionEvent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// Requeue flips an exhausted event back to pending so the worker picks it up
// again. The attempt count is preserved; the next delivery continues the
// sequence with the original nonce and payload.
func (r *Repository) Requeue(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	result := r.db.WithContext(ctx).Model(&models.TransitionEvent{}).
		Where("id = ? AND status = ?", id, enums.DispatchStatusExhausted).
		Updates(map[string]any{
			"status":          enums.DispatchStatusPending,
			"next_attempt_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *Repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.TransitionEvent, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var rows []models.TransitionEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}
