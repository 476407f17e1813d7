package webhooks

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/printforge/printforge-backend/api/responses"
	"github.com/printforge/printforge-backend/internal/payments"
	"github.com/printforge/printforge-backend/pkg/enums"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
	"github.com/printforge/printforge-backend/pkg/logger"
)

const maxWebhookBody = 64 << 10

type gatewaySecretSource interface {
	SigningSecret() string
}

// GatewayWebhook receives payment events from the gateway. The signature is
// checked before anything else; the reconciler handles dedup and matching, so
// the handler acks quickly and never blocks on dispatch.
func GatewayWebhook(svc payments.Service, secrets gatewaySecretSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		if secrets == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway secret unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInvalidSignature, "gateway signature missing"))
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, secrets.SigningSecret())
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInvalidSignature, err, "verify gateway signature"))
			return
		}

		input := payments.EventInput{
			GatewayEventID: event.ID,
			Type:           classifyGatewayEvent(string(event.Type)),
			PaymentRef:     paymentRefFromEvent(event.Data.Raw),
			Payload:        payload,
		}

		if err := svc.Process(ctx, input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}

func classifyGatewayEvent(eventType string) enums.PaymentEventType {
	switch eventType {
	case "payment_intent.succeeded":
		return enums.PaymentEventTypeSucceeded
	case "payment_intent.payment_failed":
		return enums.PaymentEventTypeFailed
	default:
		return enums.PaymentEventTypeOther
	}
}

func paymentRefFromEvent(raw json.RawMessage) string {
	var object struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &object); err != nil {
		return ""
	}
	return object.ID
}
