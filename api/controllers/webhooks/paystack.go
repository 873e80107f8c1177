package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/angelmondragon/aurelia-backend/api/responses"
	"github.com/angelmondragon/aurelia-backend/internal/webhooks/paystack"
	pkgerrors "github.com/angelmondragon/aurelia-backend/pkg/errors"
	"github.com/angelmondragon/aurelia-backend/pkg/logger"
)

// maxBodyBytes bounds the webhook body; Paystack payloads are a few KB.
const maxBodyBytes = 1 << 20

type PaystackWebhookService interface {
	HandleEvent(ctx context.Context, event paystack.Event) (paystack.Outcome, error)
}

type PaystackGate interface {
	CheckOrigin(r *http.Request) error
	Verify(body []byte, signature string) error
}

// PaystackWebhookGuard is optional; without it deduplication relies on the ledger.
type PaystackWebhookGuard interface {
	CheckAndMark(ctx context.Context, deliveryID string) (bool, error)
	Delete(ctx context.Context, deliveryID string) error
}

// PaystackWebhook authenticates, classifies and reconciles Paystack events.
func PaystackWebhook(svc PaystackWebhookService, gate PaystackGate, guard PaystackWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || gate == nil {
			responses.WriteWebhookError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		if err := gate.CheckOrigin(r); err != nil {
			responses.WriteWebhookError(ctx, logg, w, err)
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteWebhookError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Invalid payload"))
				return
			}
			responses.WriteWebhookError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read request body"))
			return
		}

		if err := gate.Verify(payload, r.Header.Get(paystack.SignatureHeader)); err != nil {
			responses.WriteWebhookError(ctx, logg, w, err)
			return
		}

		event, err := paystack.Classify(payload)
		if err != nil {
			responses.WriteWebhookError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithEventKind(ctx, event.Name())
		}

		deliveryID, guarded := paystack.DeliveryID(event)
		if guarded && logg != nil {
			ctx = logg.WithDelivery(ctx, deliveryID)
		}
		guarded = guarded && guard != nil
		if guarded {
			seen, err := guard.CheckAndMark(ctx, deliveryID)
			if err != nil {
				responses.WriteWebhookError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check idempotency"))
				return
			}
			if seen {
				if logg != nil {
					logg.Info(ctx, "paystack delivery already processed")
				}
				responses.WriteAck(w)
				return
			}
		}

		outcome, err := svc.HandleEvent(ctx, event)
		if err != nil {
			if guarded {
				if delErr := guard.Delete(ctx, deliveryID); delErr != nil && logg != nil {
					logg.Warn(logg.WithField(ctx, "error", delErr.Error()), "release idempotency key failed")
				}
			}
			responses.WriteWebhookError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithFields(ctx, map[string]any{
				"recorded":     outcome.Recorded,
				"duplicate":    outcome.Duplicate,
				"transitioned": outcome.Transitioned,
				"skipped":      outcome.Skipped,
			}), "paystack event processed")
		}
		responses.WriteAck(w)
	}
}
