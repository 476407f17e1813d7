package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v84"

	"github.com/printforge/printforge-backend/pkg/config"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
	"github.com/printforge/printforge-backend/pkg/enums"
	"github.com/printforge/printforge-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	breakerName        = "gateway-charges"
	breakerMaxRequests = 3
	breakerTimeout     = 30 * time.Second
	breakerTripCount   = 5
)

var (
	errAPIKeyRequired    = errors.New("gateway secret key is required")
	errSecretRequired    = errors.New("gateway webhook secret is required")
	errInvalidGatewayEnv = fmt.Errorf("gateway environment must be %q or %q", testEnv, liveEnv)
)

// ChargeParams describes a single charge attempt for a settled order total.
type ChargeParams struct {
	OrderID        uuid.UUID
	SessionKey     string
	AmountCents    int64
	Currency       enums.Currency
	IdempotencyKey string
}

// ChargeResult carries the gateway's reference for a created charge.
type ChargeResult struct {
	PaymentRef string
	Status     string
}

// Client wraps the payment gateway API client plus env-specific metadata.
// Charge calls run through a circuit breaker so a down gateway fails fast
// instead of stacking up checkout requests.
type Client struct {
	api           *stripe.Client
	environment   string
	signingSecret string
	chargeTimeout time.Duration
	breaker       *gobreaker.CircuitBreaker[*stripe.PaymentIntent]
}

// NewClient initializes the gateway once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.SecretKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	signingSecret := strings.TrimSpace(cfg.WebhookSecret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	timeout := cfg.ChargeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[*stripe.PaymentIntent](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: breakerMaxRequests,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripCount
		},
	})

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("gateway client initialized (%s)", env))
	}

	return &Client{
		api:           stripe.NewClient(apiKey),
		environment:   env,
		signingSecret: signingSecret,
		chargeTimeout: timeout,
		breaker:       breaker,
	}, nil
}

// Charge creates a gateway charge for the order total. The gateway-side
// idempotency key makes retries of the same checkout return the original
// charge instead of billing twice.
func (c *Client) Charge(ctx context.Context, params ChargeParams) (*ChargeResult, error) {
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge amount must be positive")
	}
	if params.IdempotencyKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge idempotency key is required")
	}

	chargeCtx, cancel := context.WithTimeout(ctx, c.chargeTimeout)
	defer cancel()

	intent, err := c.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		createParams := &stripe.PaymentIntentCreateParams{
			Amount:   stripe.Int64(params.AmountCents),
			Currency: stripe.String(strings.ToLower(string(params.Currency))),
			Metadata: map[string]string{
				"order_id":    params.OrderID.String(),
				"session_key": params.SessionKey,
			},
		}
		createParams.SetIdempotencyKey(params.IdempotencyKey)
		return c.api.V1PaymentIntents.Create(chargeCtx, createParams)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, pkgerrors.New(pkgerrors.CodeGatewayUnavailable, "payment gateway circuit open")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "creating gateway charge")
	}

	return &ChargeResult{
		PaymentRef: intent.ID,
		Status:     string(intent.Status),
	}, nil
}

// Environment reports the normalized gateway environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidGatewayEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("gateway environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("gateway environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidGatewayEnv
	}
}
