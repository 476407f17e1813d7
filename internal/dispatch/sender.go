package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/printforge/printforge-backend/pkg/security"
)

const (
	headerSignature = "X-Printforge-Signature"
	headerNonce     = "X-Printforge-Nonce"
	headerEventType = "X-Printforge-Event"

	maxResponseBody = 2048
)

// SendResult captures the partner's HTTP response for the audit trail.
type SendResult struct {
	StatusCode int
	Body       string
}

// Sender delivers one signed payload to the fulfillment partner.
type Sender interface {
	Endpoint() string
	Send(ctx context.Context, eventType string, nonce string, payload []byte) (*SendResult, error)
}

// HTTPSender signs payloads with the shared partner secret and POSTs them
// to the configured endpoint.
type HTTPSender struct {
	endpoint string
	secret   string
	client   *http.Client
}

func NewHTTPSender(endpoint, secret string, timeout time.Duration) (*HTTPSender, error) {
	if endpoint == "" {
		return nil, errors.New("fulfillment endpoint is required")
	}
	if secret == "" {
		return nil, errors.New("fulfillment secret is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSender{
		endpoint: endpoint,
		secret:   secret,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

func (s *HTTPSender) Endpoint() string {
	return s.endpoint
}

func (s *HTTPSender) Send(ctx context.Context, eventType string, nonce string, payload []byte) (*SendResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSignature, security.SignPayload(s.secret, payload, time.Now().UTC()))
	req.Header.Set(headerNonce, nonce)
	req.Header.Set(headerEventType, eventType)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	return &SendResult{StatusCode: resp.StatusCode, Body: string(body)}, nil
}
