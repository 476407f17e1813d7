package dispatch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/printforge/printforge-backend/pkg/security"
)

func TestHTTPSenderSignsAndPostsPayload(t *testing.T) {
	const secret = "partner-secret"
	payload := []byte(`{"version":1,"event_type":"order.paid"}`)

	var gotSignature, gotNonce, gotEventType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Printforge-Signature")
		gotNonce = r.Header.Get("X-Printforge-Nonce")
		gotEventType = r.Header.Get("X-Printforge-Event")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("accepted"))
	}))
	defer server.Close()

	sender, err := NewHTTPSender(server.URL, secret, 5*time.Second)
	if err != nil {
		t.Fatalf("NewHTTPSender: %v", err)
	}

	result, err := sender.Send(context.Background(), "order.paid", "nonce-1", payload)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", result.StatusCode)
	}
	if result.Body != "accepted" {
		t.Fatalf("body = %q, want accepted", result.Body)
	}
	if gotNonce != "nonce-1" || gotEventType != "order.paid" {
		t.Fatalf("headers not forwarded: nonce=%q event=%q", gotNonce, gotEventType)
	}
	if string(gotBody) != string(payload) {
		t.Fatalf("payload altered in transit")
	}
	if err := security.VerifySignature(secret, gotBody, gotSignature, time.Now(), security.DefaultSignatureTolerance); err != nil {
		t.Fatalf("partner-side signature verification failed: %v", err)
	}
}

func TestHTTPSenderReturnsNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	sender, err := NewHTTPSender(server.URL, "secret", time.Second)
	if err != nil {
		t.Fatalf("NewHTTPSender: %v", err)
	}

	result, err := sender.Send(context.Background(), "order.paid", "nonce-1", []byte(`{}`))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", result.StatusCode)
	}
}

func TestHTTPSenderTruncatesLargeResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(strings.Repeat("x", maxResponseBody*4)))
	}))
	defer server.Close()

	sender, err := NewHTTPSender(server.URL, "secret", time.Second)
	if err != nil {
		t.Fatalf("NewHTTPSender: %v", err)
	}

	result, err := sender.Send(context.Background(), "order.paid", "nonce-1", []byte(`{}`))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(result.Body) != maxResponseBody {
		t.Fatalf("body length = %d, want %d", len(result.Body), maxResponseBody)
	}
}

func TestHTTPSenderRequiresEndpointAndSecret(t *testing.T) {
	if _, err := NewHTTPSender("", "secret", time.Second); err == nil {
		t.Fatalf("expected error for missing endpoint")
	}
	if _, err := NewHTTPSender("https://partner.example", "", time.Second); err == nil {
		t.Fatalf("expected error for missing secret")
	}
}
