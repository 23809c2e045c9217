package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/marketplace-backend/api/responses"
	stripewebhook "github.com/angelmondragon/marketplace-backend/internal/webhooks/stripe"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

const (
	// Stripe caps event payloads well below this.
	maxWebhookBodyBytes = 65536
	signatureHeader     = "Stripe-Signature"
)

type StripeWebhookService interface {
	Handle(ctx context.Context, payload []byte, signature string) (*stripewebhook.Result, error)
}

// StripeWebhook verifies and reconciles Stripe checkout events. Any non-2xx
// response makes Stripe redeliver, so only retryable failures should surface as 5xx.
func StripeWebhook(svc StripeWebhookService, logg *logger.Logger) http.HandlerFunc {
	if logg == nil {
		logg = logger.Nop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "webhook service unavailable"))
			return
		}

		signature := r.Header.Get(signatureHeader)
		if strings.TrimSpace(signature) == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, stripewebhook.ErrMissingSignature, "Missing Stripe signature."))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
		if err != nil {
			msg := "Unable to read webhook body."
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				msg = "Webhook body exceeds the size limit."
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, msg))
			return
		}

		result, err := svc.Handle(ctx, payload, signature)
		if err != nil {
			if pkgerrors.IsRetryable(err) {
				logg.Warn(ctx, "stripe.webhook.redelivery_expected")
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
