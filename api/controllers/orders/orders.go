package orders

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/api/responses"
	"github.com/printforge/printforge-backend/api/validators"
	internalorders "github.com/printforge/printforge-backend/internal/orders"
	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
	"github.com/printforge/printforge-backend/pkg/logger"
	"github.com/printforge/printforge-backend/pkg/pagination"
)

const timeFormat = time.RFC3339Nano

// List pages over a session's orders, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		sessionKey := strings.TrimSpace(r.URL.Query().Get("session_key"))
		if sessionKey == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session_key query parameter required"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		list, err := svc.ListBySession(r.Context(), sessionKey, pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// Detail returns one order with its item snapshot.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newDetailResponse(order))
	}
}

// CancelOrder cancels an order that has not been charged yet.
func CancelOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newDetailResponse(order))
	}
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "orderId")
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id must be a UUID")
	}
	return orderID, nil
}

type detailResponse struct {
	ID             string            `json:"id"`
	SessionKey     string            `json:"session_key"`
	Status         enums.OrderStatus `json:"status"`
	Currency       enums.Currency    `json:"currency"`
	SubtotalCents  int64             `json:"subtotal_cents"`
	TaxCents       int64             `json:"tax_cents"`
	ShippingCents  int64             `json:"shipping_cents"`
	TotalCents     int64             `json:"total_cents"`
	PaymentRef     *string           `json:"payment_ref,omitempty"`
	Items          []itemResponse    `json:"items"`
	CreatedAt      string            `json:"created_at"`
	TransitionedAt string            `json:"transitioned_at"`
}

type itemResponse struct {
	ProductID       string  `json:"product_id"`
	Name            string  `json:"name"`
	CustomizationID *string `json:"customization_id,omitempty"`
	Qty             int     `json:"qty"`
	UnitPriceCents  int64   `json:"unit_price_cents"`
	TotalCents      int64   `json:"total_cents"`
}

func newDetailResponse(order *models.Order) detailResponse {
	if order == nil {
		return detailResponse{}
	}
	items := make([]itemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, itemResponse{
			ProductID:       item.ProductID,
			Name:            item.Name,
			CustomizationID: item.CustomizationID,
			Qty:             item.Qty,
			UnitPriceCents:  item.UnitPriceCents,
			TotalCents:      item.TotalCents,
		})
	}
	return detailResponse{
		ID:             order.ID.String(),
		SessionKey:     order.SessionKey,
		Status:         order.Status,
		Currency:       order.Currency,
		SubtotalCents:  order.SubtotalCents,
		TaxCents:       order.TaxCents,
		ShippingCents:  order.ShippingCents,
		TotalCents:     order.TotalCents,
		PaymentRef:     order.PaymentRef,
		Items:          items,
		CreatedAt:      order.CreatedAt.UTC().Format(timeFormat),
		TransitionedAt: order.TransitionedAt.UTC().Format(timeFormat),
	}
}
