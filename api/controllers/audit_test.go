package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/internal/audit"
	"github.com/printforge/printforge-backend/pkg/enums"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
)

type stubAuditService struct {
	list            *audit.DeliveryList
	listErr         error
	lastParams      audit.ListParams
	redispatchCalls int
	redispatchErr   error
	lastTransition  uuid.UUID
}

func (s *stubAuditService) List(ctx context.Context, params audit.ListParams) (*audit.DeliveryList, error) {
	s.lastParams = params
	return s.list, s.listErr
}

func (s *stubAuditService) Redispatch(ctx context.Context, transitionID uuid.UUID) error {
	s.redispatchCalls++
	s.lastTransition = transitionID
	return s.redispatchErr
}

func newAuditRouter(svc audit.Service) http.Handler {
	r := chi.NewRouter()
	r.Get("/deliveries", DeliveryLog(svc, nil))
	r.Post("/transitions/{transitionId}/redispatch", RedispatchTransition(svc, nil))
	return r
}

func TestDeliveryLog_ForwardsFilters(t *testing.T) {
	svc := &stubAuditService{list: &audit.DeliveryList{}}
	router := newAuditRouter(svc)

	orderID := uuid.New()
	url := "/deliveries?order_id=" + orderID.String() +
		"&event_type=order.paid&from=2026-03-10T00:00:00Z&to=2026-03-11T00:00:00Z&limit=5"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	params := svc.lastParams
	if params.OrderID == nil || *params.OrderID != orderID {
		t.Fatalf("order filter not forwarded")
	}
	if params.EventType == nil || *params.EventType != enums.DispatchEventOrderPaid {
		t.Fatalf("event type filter not forwarded")
	}
	if params.From == nil || params.To == nil {
		t.Fatalf("time range not forwarded")
	}
	if params.Page.Limit != 5 {
		t.Fatalf("limit = %d, want 5", params.Page.Limit)
	}
}

func TestDeliveryLog_RejectsUnknownEventType(t *testing.T) {
	router := newAuditRouter(&stubAuditService{})

	req := httptest.NewRequest(http.MethodGet, "/deliveries?event_type=order.exploded", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRedispatchTransition_Accepted(t *testing.T) {
	svc := &stubAuditService{}
	router := newAuditRouter(svc)

	transitionID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/transitions/"+transitionID.String()+"/redispatch", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.redispatchCalls != 1 || svc.lastTransition != transitionID {
		t.Fatalf("redispatch not forwarded")
	}
}

func TestRedispatchTransition_NonExhaustedRejected(t *testing.T) {
	svc := &stubAuditService{redispatchErr: pkgerrors.New(pkgerrors.CodeStateConflict, "only exhausted events can be redispatched")}
	router := newAuditRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/transitions/"+uuid.NewString()+"/redispatch", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestRedispatchTransition_MalformedID(t *testing.T) {
	svc := &stubAuditService{}
	router := newAuditRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/transitions/nope/redispatch", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if svc.redispatchCalls != 0 {
		t.Fatalf("service should not be invoked for malformed ids")
	}
}
