package inventory

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/grigobio237-eng/Youniqle-sub002/api/middleware"
	"github.com/grigobio237-eng/Youniqle-sub002/api/responses"
	"github.com/grigobio237-eng/Youniqle-sub002/api/validators"
	internalinventory "github.com/grigobio237-eng/Youniqle-sub002/internal/inventory"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	pkgerrors "github.com/grigobio237-eng/Youniqle-sub002/pkg/errors"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
)

const maxReasonLength = 200

type statusReader interface {
	GetProductInventoryStatus(ctx context.Context, productID uuid.UUID) (*internalinventory.ItemStatus, error)
	GetAllInventoryStatus(ctx context.Context) ([]internalinventory.ItemStatus, error)
}

type stockAdjuster interface {
	Adjust(ctx context.Context, input internalinventory.AdjustInput, role enums.Role) (*internalinventory.ItemStatus, error)
}

type productOwnership interface {
	OwnedByUser(ctx context.Context, productID, userID uuid.UUID) (bool, error)
}

type adjustRequest struct {
	Delta  int    `json:"delta" validate:"ne=0"`
	Reason string `json:"reason" validate:"required"`
}

// Get returns the stock picture of one product.
func Get(svc statusReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := svc.GetProductInventoryStatus(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// List returns every ledger row, optionally filtered by ?status=.
func List(svc statusReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		var filter *enums.InventoryStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			parsed, err := enums.ParseInventoryStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filter = &parsed
		}

		items, err := svc.GetAllInventoryStatus(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter != nil {
			kept := items[:0]
			for _, item := range items {
				if item.Status == *filter {
					kept = append(kept, item)
				}
			}
			items = kept
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

// Adjust applies a signed stock correction. Partners may only touch their own
// products; admins may touch any.
func Adjust(adjuster stockAdjuster, owners productOwnership, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if adjuster == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req adjustRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		switch identity.Role {
		case enums.RoleAdmin:
		case enums.RolePartner:
			if owners == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product ownership unavailable"))
				return
			}
			owned, err := owners.OwnedByUser(r.Context(), productID, identity.UserID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check product ownership"))
				return
			}
			if !owned {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Domain(pkgerrors.ReasonNotOwner, "product belongs to another partner"))
				return
			}
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.Domain(pkgerrors.ReasonRoleNotPermitted, "only partners and admins adjust stock"))
			return
		}

		status, err := adjuster.Adjust(r.Context(), internalinventory.AdjustInput{
			ProductID:   productID,
			Delta:       req.Delta,
			Reason:      validators.SanitizeString(req.Reason, maxReasonLength),
			ActorUserID: identity.UserID,
		}, identity.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
