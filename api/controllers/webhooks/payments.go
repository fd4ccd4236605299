package webhooks

import (
	"context"
	"net/http"

	"github.com/grigobio237-eng/Youniqle-sub002/api/responses"
	"github.com/grigobio237-eng/Youniqle-sub002/api/validators"
	paymentsvc "github.com/grigobio237-eng/Youniqle-sub002/internal/payments"
	pkgerrors "github.com/grigobio237-eng/Youniqle-sub002/pkg/errors"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
	gateway "github.com/grigobio237-eng/Youniqle-sub002/pkg/payments"
)

type PaymentCallbackService interface {
	HandleCallback(ctx context.Context, cb gateway.Callback) (*paymentsvc.CallbackResult, error)
}

type callbackVerifier interface {
	Verify(cb gateway.Callback) error
}

type paymentCallbackGuard interface {
	CheckAndMark(ctx context.Context, transactionID string) (bool, error)
	Forget(ctx context.Context, transactionID string) error
}

// CallbackAck is returned to the gateway for every accepted delivery.
type CallbackAck struct {
	Status  string                     `json:"status"`
	Reason  string                     `json:"reason,omitempty"`
	Outcome paymentsvc.Outcome         `json:"outcome,omitempty"`
	Result  *paymentsvc.CallbackResult `json:"result,omitempty"`
}

// PaymentCallback handles the gateway's server-to-server result notification.
// The signature is checked before the transaction is claimed so forged
// deliveries cannot burn a real transaction id.
func PaymentCallback(svc PaymentCallbackService, verifier callbackVerifier, guard paymentCallbackGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		var cb gateway.Callback
		if err := validators.DecodeJSONBody(w, r, &cb); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := verifier.Verify(cb); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"transaction_id": cb.TransactionID,
				"order_number":   cb.OrderNumber,
			})
		}

		seen, err := guard.CheckAndMark(ctx, cb.TransactionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if seen {
			if logg != nil {
				logg.Info(ctx, "payment callback already processed")
			}
			responses.WriteSuccess(w, CallbackAck{Status: "duplicate"})
			return
		}

		result, err := svc.HandleCallback(ctx, cb)
		if err != nil {
			if pkgerrors.IsReason(err, pkgerrors.ReasonAlreadyPaid) {
				if logg != nil {
					logg.Info(ctx, "payment callback for paid order ignored")
				}
				responses.WriteSuccess(w, CallbackAck{Status: "ignored", Reason: string(pkgerrors.ReasonAlreadyPaid)})
				return
			}
			if forgetErr := guard.Forget(ctx, cb.TransactionID); forgetErr != nil && logg != nil {
				logg.Error(ctx, "release payment callback claim", forgetErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, "payment callback processed")
		}
		responses.WriteSuccess(w, CallbackAck{Status: "processed", Outcome: result.Outcome, Result: result})
	}
}
