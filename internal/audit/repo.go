package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	"github.com/printforge/printforge-backend/pkg/pagination"
)

// ListParams filter the delivery log. All filters are optional.
type ListParams struct {
	OrderID   *uuid.UUID
	EventType *enums.DispatchEventType
	From      *time.Time
	To        *time.Time
	Page      pagination.Params
}

// DeliveryList wraps one page of the audit log plus the next cursor.
type DeliveryList struct {
	Deliveries []models.WebhookDelivery `json:"deliveries"`
	NextCursor string                   `json:"next_cursor,omitempty"`
}

// Repository owns the append-only delivery log. The dispatch worker
// appends one row per attempt; the admin surface pages over them.
type Repository interface {
	InsertTx(tx *gorm.DB, row models.WebhookDelivery) error
	List(ctx context.Context, params ListParams) (*DeliveryList, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an audit repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) InsertTx(tx *gorm.DB, row models.WebhookDelivery) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return tx.Create(&row).Error
}

func (r *repository) List(ctx context.Context, params ListParams) (*DeliveryList, error) {
	limit := pagination.LimitWithBuffer(params.Page.Limit)

	query := r.db.WithContext(ctx).
		Model(&models.WebhookDelivery{}).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)

	if params.OrderID != nil {
		query = query.Where("order_id = ?", *params.OrderID)
	}
	if params.EventType != nil {
		query = query.Where("event_type = ?", *params.EventType)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	cursor, err := pagination.ParseCursor(params.Page.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.WebhookDelivery
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	pageSize := pagination.NormalizeLimit(params.Page.Limit)
	nextCursor := ""
	if len(rows) > pageSize {
		last := rows[pageSize-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		rows = rows[:pageSize]
	}
	return &DeliveryList{Deliveries: rows, NextCursor: nextCursor}, nil
}
