package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/api/responses"
	"github.com/printforge/printforge-backend/api/validators"
	"github.com/printforge/printforge-backend/internal/audit"
	"github.com/printforge/printforge-backend/pkg/enums"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
	"github.com/printforge/printforge-backend/pkg/logger"
	"github.com/printforge/printforge-backend/pkg/pagination"
)

// DeliveryLog pages over outbound webhook attempts, newest first. Filters:
// order_id, event_type, from, to (RFC 3339).
func DeliveryLog(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}

		params, err := buildDeliveryParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// RedispatchTransition requeues an exhausted transition event for delivery.
func RedispatchTransition(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}

		raw := chi.URLParam(r, "transitionId")
		transitionID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "transition id must be a UUID"))
			return
		}

		if err := svc.Redispatch(r.Context(), transitionID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"status": "requeued"})
	}
}

func buildDeliveryParams(r *http.Request) (audit.ListParams, error) {
	params := audit.ListParams{}

	if raw := strings.TrimSpace(r.URL.Query().Get("order_id")); raw != "" {
		orderID, err := uuid.Parse(raw)
		if err != nil {
			return params, pkgerrors.New(pkgerrors.CodeValidation, "order_id must be a UUID")
		}
		params.OrderID = &orderID
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("event_type")); raw != "" {
		eventType := enums.DispatchEventType(raw)
		if !eventType.IsValid() {
			return params, pkgerrors.New(pkgerrors.CodeValidation, "unknown event_type")
		}
		params.EventType = &eventType
	}

	from, err := validators.ParseQueryTime(r, "from")
	if err != nil {
		return params, err
	}
	params.From = from

	to, err := validators.ParseQueryTime(r, "to")
	if err != nil {
		return params, err
	}
	params.To = to

	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return params, err
	}
	params.Page = pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}
	return params, nil
}
