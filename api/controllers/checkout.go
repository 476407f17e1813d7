package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/printforge/printforge-backend/api/responses"
	"github.com/printforge/printforge-backend/api/validators"
	checkoutsvc "github.com/printforge/printforge-backend/internal/checkout"
	pkgcheckout "github.com/printforge/printforge-backend/pkg/checkout"
	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
	"github.com/printforge/printforge-backend/pkg/logger"
)

const (
	timeFormat     = time.RFC3339Nano
	maxItemNameLen = 200
)

// Checkout turns the submitted cart snapshot into a durable order and
// requests the gateway charge.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Execute(r.Context(), checkoutsvc.ExecuteInput{
			Cart:           payload.toCart(),
			IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

type checkoutRequest struct {
	SessionKey string              `json:"session_key" validate:"required"`
	Currency   string              `json:"currency" validate:"required,len=3"`
	Items      []checkoutLineInput `json:"items" validate:"required,min=1,dive"`
}

type checkoutLineInput struct {
	ProductID       string `json:"product_id" validate:"required"`
	Name            string `json:"name" validate:"required"`
	CustomizationID string `json:"customization_id,omitempty"`
	Qty             int    `json:"qty" validate:"required,min=1"`
	UnitPriceCents  int64  `json:"unit_price_cents" validate:"min=0"`
}

func (c checkoutRequest) toCart() pkgcheckout.Cart {
	items := make([]pkgcheckout.CartItem, 0, len(c.Items))
	for _, line := range c.Items {
		items = append(items, pkgcheckout.CartItem{
			ProductID:       line.ProductID,
			Name:            validators.SanitizeString(line.Name, maxItemNameLen),
			CustomizationID: line.CustomizationID,
			Qty:             line.Qty,
			UnitPriceCents:  line.UnitPriceCents,
		})
	}
	return pkgcheckout.Cart{
		SessionKey: c.SessionKey,
		Currency:   enums.Currency(strings.ToUpper(c.Currency)),
		Items:      items,
	}
}

type orderResponse struct {
	ID             string              `json:"id"`
	SessionKey     string              `json:"session_key"`
	Status         enums.OrderStatus   `json:"status"`
	Currency       enums.Currency      `json:"currency"`
	SubtotalCents  int64               `json:"subtotal_cents"`
	TaxCents       int64               `json:"tax_cents"`
	ShippingCents  int64               `json:"shipping_cents"`
	TotalCents     int64               `json:"total_cents"`
	PaymentRef     *string             `json:"payment_ref,omitempty"`
	Items          []orderItemResponse `json:"items"`
	CreatedAt      string              `json:"created_at"`
	TransitionedAt string              `json:"transitioned_at"`
}

type orderItemResponse struct {
	ProductID       string  `json:"product_id"`
	Name            string  `json:"name"`
	CustomizationID *string `json:"customization_id,omitempty"`
	Qty             int     `json:"qty"`
	UnitPriceCents  int64   `json:"unit_price_cents"`
	LineTotalCents  int64   `json:"line_total_cents"`
}

func newOrderResponse(order *models.Order) orderResponse {
	if order == nil {
		return orderResponse{}
	}
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID:       item.ProductID,
			Name:            item.Name,
			CustomizationID: item.CustomizationID,
			Qty:             item.Qty,
			UnitPriceCents:  item.UnitPriceCents,
			LineTotalCents:  item.TotalCents,
		})
	}
	return orderResponse{
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
