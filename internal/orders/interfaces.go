package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	"github.com/printforge/printforge-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error)
	ListBySession(ctx context.Context, sessionKey string, params pagination.Params) (*OrderList, error)
	SetPaymentRefIfEmpty(ctx context.Context, id uuid.UUID, paymentRef string) (bool, error)
	TransitionCAS(ctx context.Context, id uuid.UUID, from enums.OrderStatus, version int, to enums.OrderStatus, at time.Time) (bool, error)
}
