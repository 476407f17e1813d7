package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/printforge/printforge-backend/api/responses"
	"github.com/printforge/printforge-backend/internal/fulfillment"
	pkgerrors "github.com/printforge/printforge-backend/pkg/errors"
	"github.com/printforge/printforge-backend/pkg/logger"
	"github.com/printforge/printforge-backend/pkg/security"
)

const fulfillmentSignatureHeader = "X-Printforge-Signature"

type fulfillmentEvent struct {
	EventID string `json:"event_id"`
	OrderID string `json:"order_id"`
	Type    string `json:"type"`
}

// FulfillmentWebhook receives partner milestone events (accepted, completed,
// shipped, delivered) verified against the shared partner secret.
func FulfillmentWebhook(svc fulfillment.Service, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}
		if secret == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment secret unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get(fulfillmentSignatureHeader)
		if err := security.VerifySignature(secret, payload, sigHeader, time.Now(), security.DefaultSignatureTolerance); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInvalidSignature, err, "verify partner signature"))
			return
		}

		var event fulfillmentEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event payload"))
			return
		}

		orderID, err := uuid.Parse(event.OrderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order_id must be a UUID"))
			return
		}

		input := fulfillment.EventInput{
			EventID: event.EventID,
			OrderID: orderID,
			Type:    fulfillment.EventType(event.Type),
		}

		if err := svc.Process(ctx, input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
