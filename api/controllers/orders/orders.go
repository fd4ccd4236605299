package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/grigobio237-eng/Youniqle-sub002/api/middleware"
	"github.com/grigobio237-eng/Youniqle-sub002/api/responses"
	"github.com/grigobio237-eng/Youniqle-sub002/api/validators"
	internalorders "github.com/grigobio237-eng/Youniqle-sub002/internal/orders"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	pkgerrors "github.com/grigobio237-eng/Youniqle-sub002/pkg/errors"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/payments"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/types"
)

const maxNotesLength = 500

type checkoutSigner interface {
	CheckoutRequest(orderNumber string, amountCents int64) payments.CheckoutRequest
}

type paymentConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID uuid.UUID) (*internalorders.OrderDTO, error)
}

type createOrderRequest struct {
	Items           []internalorders.ItemInput `json:"items" validate:"required,min=1,dive"`
	ShippingAddress types.Address              `json:"shipping_address" validate:"required"`
	Notes           *string                    `json:"notes,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type createOrderResponse struct {
	Order   *internalorders.OrderDTO `json:"order"`
	Payment payments.CheckoutRequest `json:"payment"`
}

// Create places an order for the caller and returns the signed gateway
// parameters the client redirects with.
func Create(svc internalorders.Service, signer checkoutSigner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || signer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.Notes != nil {
			notes := validators.SanitizeString(*req.Notes, maxNotesLength)
			req.Notes = &notes
		}

		order, err := svc.Create(r.Context(), internalorders.CreateOrderInput{
			UserID:          actor.UserID,
			Items:           req.Items,
			ShippingAddress: req.ShippingAddress,
			Notes:           req.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, createOrderResponse{
			Order:   order,
			Payment: signer.CheckoutRequest(order.OrderNumber, order.TotalCents),
		})
	}
}

// List pages through the caller's own orders, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListForUser(r.Context(), actor.UserID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one order if the caller owns it, is an admin, or is a
// partner with a line on it.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		actor, orderID, err := actorAndOrder(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetForActor(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Cancel lets a customer cancel their own order before it ships.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		actor, orderID, err := actorAndOrder(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.CancelByCustomer(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithOrderID(r.Context(), orderID.String()), "order cancelled by customer")
		}
		responses.WriteSuccess(w, order)
	}
}

// UpdateStatus moves an order along the fulfilment graph. The state machine
// decides what the caller's role may do; the route only authenticates.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		actor, orderID, err := actorAndOrder(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateStatusRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseOrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"}))
			return
		}

		order, err := svc.UpdateStatus(r.Context(), internalorders.UpdateStatusInput{
			OrderID: orderID,
			Target:  target,
			Actor:   actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// ConfirmPayment is the admin's manual path into the payment workflow, used
// when a gateway callback never arrived.
func ConfirmPayment(svc paymentConfirmer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.ConfirmPayment(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func actorFrom(r *http.Request) (internalorders.Actor, error) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return internalorders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return internalorders.Actor{UserID: identity.UserID, Role: identity.Role}, nil
}

func actorAndOrder(r *http.Request) (internalorders.Actor, uuid.UUID, error) {
	actor, err := actorFrom(r)
	if err != nil {
		return internalorders.Actor{}, uuid.Nil, err
	}
	orderID, err := validators.ParseUUIDParam(r, "orderId")
	if err != nil {
		return internalorders.Actor{}, uuid.Nil, err
	}
	return actor, orderID, nil
}
