package commissions

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grigobio237-eng/Youniqle-sub002/api/middleware"
	"github.com/grigobio237-eng/Youniqle-sub002/api/responses"
	"github.com/grigobio237-eng/Youniqle-sub002/api/validators"
	internalcommissions "github.com/grigobio237-eng/Youniqle-sub002/internal/commissions"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/models"
	pkgerrors "github.com/grigobio237-eng/Youniqle-sub002/pkg/errors"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/outbox"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/pagination"
)

type partnerReader interface {
	ListByPartner(ctx context.Context, partnerID uuid.UUID, params pagination.Params) (*internalcommissions.CommissionList, error)
	PartnerSummary(ctx context.Context, partnerID uuid.UUID) (*internalcommissions.Summary, error)
}

type settlementService interface {
	Approve(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*internalcommissions.CommissionDTO, error)
	MarkPaid(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*internalcommissions.CommissionDTO, error)
	RecomputePending(ctx context.Context, partnerID uuid.UUID) (int, error)
}

type partnerLookup interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Partner, error)
}

// List returns the calling partner's commissions, newest first.
func List(svc partnerReader, partners partnerLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}
		partnerID, err := callerPartner(r, partners)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListByPartner(r.Context(), partnerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Summary returns pending, approved and paid totals for the calling partner.
func Summary(svc partnerReader, partners partnerLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}
		partnerID, err := callerPartner(r, partners)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.PartnerSummary(r.Context(), partnerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func Approve(svc settlementService, logg *logger.Logger) http.HandlerFunc {
	return advance(svc, logg, func(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*internalcommissions.CommissionDTO, error) {
		return svc.Approve(ctx, id, actor)
	})
}

func Pay(svc settlementService, logg *logger.Logger) http.HandlerFunc {
	return advance(svc, logg, func(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*internalcommissions.CommissionDTO, error) {
		return svc.MarkPaid(ctx, id, actor)
	})
}

// Recompute re-applies a partner's current rate to its pending commissions.
func Recompute(svc settlementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}
		partnerID, err := validators.ParseUUIDParam(r, "partnerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.RecomputePending(r.Context(), partnerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"partner_id": partnerID, "updated": updated})
	}
}

func advance(svc settlementService, logg *logger.Logger, move func(context.Context, uuid.UUID, *outbox.ActorRef) (*internalcommissions.CommissionDTO, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "commissionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := move(r.Context(), id, &outbox.ActorRef{UserID: identity.UserID, Role: identity.Role})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func callerPartner(r *http.Request, partners partnerLookup) (uuid.UUID, error) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if partners == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeInternal, "partner lookup unavailable")
	}
	partner, err := partners.FindByUserID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "no partner account for this user")
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve partner")
	}
	return partner.ID, nil
}
