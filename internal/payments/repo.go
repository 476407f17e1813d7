package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
)

// Repository defines persistence operations for inbound payment events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, event *models.PaymentEvent) (*models.PaymentEvent, error)
	FindByGatewayEventID(ctx context.Context, gatewayEventID string) (*models.PaymentEvent, error)
	MarkMatched(ctx context.Context, id, orderID uuid.UUID, at time.Time) error
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentEvent, error)
	MarkOrphanedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payment event repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, event *models.PaymentEvent) (*models.PaymentEvent, error) {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func (r *repository) FindByGatewayEventID(ctx context.Context, gatewayEventID string) (*models.PaymentEvent, error) {
	var event models.PaymentEvent
	err := r.db.WithContext(ctx).Where("gateway_event_id = ?", gatewayEventID).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) MarkMatched(ctx context.Context, id, orderID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.PaymentEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     enums.PaymentEventStatusMatched,
			"order_id":   orderID,
			"matched_at": at,
		}).Error
}

func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentEvent, error) {
	var rows []models.PaymentEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.PaymentEventStatusPending).
		Where("received_at <= ?", cutoff).
		Order("received_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) MarkOrphanedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.PaymentEvent{}).
		Where("status = ?", enums.PaymentEventStatusPending).
		Where("received_at <= ?", cutoff).
		Update("status", enums.PaymentEventStatusOrphaned)
	return result.RowsAffected, result.Error
}
