package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	checkoutsvc "github.com/printforge/printforge-backend/internal/checkout"
	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/enums"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
)

type stubCheckoutService struct {
	calls     int
	lastInput checkoutsvc.ExecuteInput
	order     *models.Order
	err       error
}

func (s *stubCheckoutService) Execute(ctx context.Context, input checkoutsvc.ExecuteInput) (*models.Order, error) {
	s.calls++
	s.lastInput = input
	return s.order, s.err
}

func checkoutBody(sessionKey string) string {
	return fmt.Sprintf(`{
		"session_key": %q,
		"currency": "USD",
		"items": [
			{"product_id": "prod-1", "name": "Mug", "customization_id": "cust-1", "qty": 2, "unit_price_cents": 1500}
		]
	}`, sessionKey)
}

func TestCheckout_CreatesOrder(t *testing.T) {
	order := &models.Order{
		ID:         uuid.New(),
		SessionKey: "sess-1",
		Status:     enums.OrderStatusCreated,
		Currency:   enums.CurrencyUSD,
		TotalCents: 3000,
	}
	svc := &stubCheckoutService{order: order}
	handler := Checkout(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewBufferString(checkoutBody("sess-1")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "client-key-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.calls != 1 {
		t.Fatalf("expected service called once, got %d", svc.calls)
	}
	if svc.lastInput.IdempotencyKey != "client-key-1" {
		t.Fatalf("idempotency key = %q, want client-key-1", svc.lastInput.IdempotencyKey)
	}
	cart := svc.lastInput.Cart
	if cart.SessionKey != "sess-1" || cart.Currency != enums.CurrencyUSD {
		t.Fatalf("cart not forwarded: %+v", cart)
	}
	if len(cart.Items) != 1 || cart.Items[0].Qty != 2 || cart.Items[0].UnitPriceCents != 1500 {
		t.Fatalf("cart items not forwarded: %+v", cart.Items)
	}

	var envelope struct {
		Data struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != order.ID.String() {
		t.Fatalf("response order id = %q, want %s", envelope.Data.ID, order.ID)
	}
	if envelope.Data.Status != string(enums.OrderStatusCreated) {
		t.Fatalf("response status = %q", envelope.Data.Status)
	}
}

func TestCheckout_LowercaseCurrencyNormalized(t *testing.T) {
	svc := &stubCheckoutService{order: &models.Order{ID: uuid.New()}}
	handler := Checkout(svc, nil)

	body := `{"session_key":"sess-2","currency":"usd","items":[{"product_id":"p","name":"n","qty":1,"unit_price_cents":100}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastInput.Cart.Currency != enums.CurrencyUSD {
		t.Fatalf("currency = %q, want USD", svc.lastInput.Cart.Currency)
	}
}

func TestCheckout_ZeroPriceLineAccepted(t *testing.T) {
	svc := &stubCheckoutService{order: &models.Order{ID: uuid.New()}}
	handler := Checkout(svc, nil)

	body := `{"session_key":"sess-6","currency":"USD","items":[{"product_id":"p","name":"Sample Sticker","qty":1,"unit_price_cents":0}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.calls != 1 {
		t.Fatalf("expected service called once, got %d", svc.calls)
	}
	if svc.lastInput.Cart.Items[0].UnitPriceCents != 0 {
		t.Fatalf("zero unit price not forwarded: %+v", svc.lastInput.Cart.Items)
	}
}

func TestCheckout_NegativePriceRejected(t *testing.T) {
	svc := &stubCheckoutService{}
	handler := Checkout(svc, nil)

	body := `{"session_key":"sess-7","currency":"USD","items":[{"product_id":"p","name":"n","qty":1,"unit_price_cents":-100}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.calls != 0 {
		t.Fatalf("service should not be invoked for invalid payloads")
	}
}

func TestCheckout_MissingItemsRejected(t *testing.T) {
	svc := &stubCheckoutService{}
	handler := Checkout(svc, nil)

	body := `{"session_key":"sess-3","currency":"USD","items":[]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.calls != 0 {
		t.Fatalf("service should not be invoked for invalid payloads")
	}
}

func TestCheckout_InvalidCartErrorSurfaced(t *testing.T) {
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeInvalidCart, "cart cannot be checked out")}
	handler := Checkout(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewBufferString(checkoutBody("sess-4")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeInvalidCart) {
		t.Fatalf("error code = %q, want %s", envelope.Error.Code, pkgerrors.CodeInvalidCart)
	}
}

func TestCheckout_GatewayUnavailableSurfaced(t *testing.T) {
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeGatewayUnavailable, "charge failed")}
	handler := Checkout(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewBufferString(checkoutBody("sess-5")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d (%s)", rec.Code, rec.Body.String())
	}
}
