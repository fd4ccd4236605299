package commissions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/models"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	pkgerrors "github.com/grigobio237-eng/Youniqle-sub002/pkg/errors"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/outbox"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/outbox/payloads"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OrderReader loads an order with its lines.
type OrderReader interface {
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// PartnerRates reads partner commission rates.
type PartnerRates interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Partner, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Partner, error)
}

type ServiceParams struct {
	Repo     *Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Orders   OrderReader
	Partners PartnerRates
	Logger   *logger.Logger
	Now      func() time.Time
}

// Service attributes partner commissions and drives their settlement.
// Attribution only reads orders; it never touches stock.
type Service struct {
	repo     *Repository
	tx       txRunner
	outbox   outboxPublisher
	orders   OrderReader
	partners PartnerRates
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("commissions repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Orders == nil:
		return nil, fmt.Errorf("order reader required")
	case params.Partners == nil:
		return nil, fmt.Errorf("partner rates required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     params.Repo,
		tx:       params.Tx,
		outbox:   params.Outbox,
		orders:   params.Orders,
		partners: params.Partners,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// Plan prices the order's partner lines at the partners' current rates.
// It reads only and is meant to run before the transaction that applies it.
func (s *Service) Plan(ctx context.Context, order *models.Order) ([]Attribution, error) {
	ids := PartnerIDs(order)
	if len(ids) == 0 {
		return nil, nil
	}
	partners, err := s.partners.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load partner rates")
	}
	rates := make(map[uuid.UUID]decimal.Decimal, len(partners))
	for id, partner := range partners {
		rates[id] = partner.CommissionRate
	}
	if len(rates) < len(ids) {
		s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "order references partners that no longer exist; their lines earn no commission")
	}
	return Attribute(order, rates), nil
}

// Apply upserts the planned commissions inside tx. Rows that already left
// pending are never recomputed.
func (s *Service) Apply(ctx context.Context, tx *gorm.DB, plan []Attribution) error {
	if len(plan) == 0 {
		return nil
	}
	repo := s.repo.WithTx(tx)
	existing, err := repo.FindForOrder(ctx, plan[0].OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order commissions")
	}
	for _, a := range plan {
		row, ok := existing[a.PartnerID]
		switch {
		case !ok:
			row = models.Commission{
				PartnerID:       a.PartnerID,
				OrderID:         a.OrderID,
				RevenueCents:    a.RevenueCents,
				CommissionCents: a.CommissionCents,
				RateApplied:     a.Rate,
				Status:          enums.CommissionStatusPending,
			}
			if err := repo.Create(ctx, &row); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create commission")
			}
		case row.Status != enums.CommissionStatusPending:
			continue
		case row.CommissionCents == a.CommissionCents && row.RevenueCents == a.RevenueCents && row.RateApplied.Equal(a.Rate):
			continue
		default:
			updated, err := repo.UpdatePendingAmounts(ctx, row.ID, a)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update commission")
			}
			if !updated {
				continue
			}
		}
		if err := s.emitAttributed(ctx, tx, row.ID, a); err != nil {
			return err
		}
	}
	return nil
}

// AttributeOrder computes and stores commissions for a paid order.
func (s *Service) AttributeOrder(ctx context.Context, orderID uuid.UUID) ([]CommissionDTO, error) {
	order, err := s.orders.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Domain(pkgerrors.ReasonOrderNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.PaymentStatus != enums.PaymentStatusPaid || order.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "commissions are attributed to paid orders only").
			WithDetails(map[string]any{"status": order.Status, "payment_status": order.PaymentStatus})
	}
	plan, err := s.Plan(ctx, order)
	if err != nil {
		return nil, err
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.Apply(ctx, tx, plan)
	}); err != nil {
		return nil, err
	}

	rows, err := s.repo.FindForOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order commissions")
	}
	out := make([]CommissionDTO, 0, len(plan))
	for _, a := range plan {
		if row, ok := rows[a.PartnerID]; ok {
			out = append(out, *FromModel(&row))
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"order_id": orderID.String(), "partners": len(out)}), "commissions attributed")
	return out, nil
}

// RecomputePending re-applies the partner's current rate to its pending
// commissions and reports how many changed.
func (s *Service) RecomputePending(ctx context.Context, partnerID uuid.UUID) (int, error) {
	partner, err := s.partners.FindByID(ctx, partnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "partner not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load partner")
	}
	rows, err := s.repo.ListPendingByPartner(ctx, partnerID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending commissions")
	}

	type change struct {
		id uuid.UUID
		a  Attribution
	}
	var changes []change
	rates := map[uuid.UUID]decimal.Decimal{partnerID: partner.CommissionRate}
	for _, row := range rows {
		order, err := s.orders.FindOrder(ctx, row.OrderID)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		plan := Attribute(order, rates)
		if len(plan) == 0 {
			continue
		}
		a := plan[0]
		if a.CommissionCents == row.CommissionCents && a.Rate.Equal(row.RateApplied) {
			continue
		}
		changes = append(changes, change{id: row.ID, a: a})
	}
	if len(changes) == 0 {
		return 0, nil
	}

	updated := 0
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, c := range changes {
			ok, err := repo.UpdatePendingAmounts(ctx, c.id, c.a)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update commission")
			}
			if !ok {
				continue
			}
			updated++
			if err := s.emitAttributed(ctx, tx, c.id, c.a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"partner_id": partnerID.String(),
		"rate":       partner.CommissionRate.String(),
		"updated":    updated,
	})
	s.logg.Info(logCtx, "pending commissions recomputed")
	return updated, nil
}

// Approve moves a pending commission to approved.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*CommissionDTO, error) {
	return s.advance(ctx, id, enums.CommissionStatusPending, enums.CommissionStatusApproved, "approved_at", actor)
}

// MarkPaid moves an approved commission to paid.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*CommissionDTO, error) {
	return s.advance(ctx, id, enums.CommissionStatusApproved, enums.CommissionStatusPaid, "paid_at", actor)
}

func (s *Service) advance(ctx context.Context, id uuid.UUID, from, to enums.CommissionStatus, stamp string, actor *outbox.ActorRef) (*CommissionDTO, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "commission not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load commission")
	}
	if row.Status != from {
		return nil, pkgerrors.Domain(pkgerrors.ReasonIllegalTransition,
			fmt.Sprintf("commission cannot move from %s to %s", row.Status, to))
	}

	now := s.now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).CompareAndSetStatus(ctx, id, from, map[string]any{
			"status":     to,
			stamp:        now,
			"updated_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update commission status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "commission status changed concurrently")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCommissionStateChange,
			AggregateType: enums.AggregateCommission,
			AggregateID:   id,
			Actor:         actor,
			Data: payloads.CommissionStateChangedEvent{
				CommissionID: id,
				PartnerID:    row.PartnerID,
				From:         from,
				To:           to,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	row.Status = to
	row.UpdatedAt = now
	if to == enums.CommissionStatusApproved {
		row.ApprovedAt = &now
	} else {
		row.PaidAt = &now
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"commission_id": id.String(), "from": from, "to": to})
	s.logg.Info(logCtx, "commission status changed")
	return FromModel(row), nil
}

func (s *Service) PartnerSummary(ctx context.Context, partnerID uuid.UUID) (*Summary, error) {
	totals, err := s.repo.TotalsByStatus(ctx, partnerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize commissions")
	}
	out := &Summary{PartnerID: partnerID}
	for _, t := range totals {
		bucket := Bucket{Count: t.Count, RevenueCents: t.RevenueCents, CommissionCents: t.CommissionCents}
		switch t.Status {
		case enums.CommissionStatusPending:
			out.Pending = bucket
		case enums.CommissionStatusApproved:
			out.Approved = bucket
		case enums.CommissionStatusPaid:
			out.Paid = bucket
		}
	}
	out.OutstandingCents = out.Pending.CommissionCents + out.Approved.CommissionCents
	return out, nil
}

func (s *Service) ListByPartner(ctx context.Context, partnerID uuid.UUID, params pagination.Params) (*CommissionList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByPartner(ctx, partnerID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list commissions")
	}

	rows, next := pagination.Page(rows, params.Limit, func(row models.Commission) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	out := &CommissionList{NextCursor: next, Commissions: make([]CommissionDTO, 0, len(rows))}
	for i := range rows {
		out.Commissions = append(out.Commissions, *FromModel(&rows[i]))
	}
	return out, nil
}

// DeletePendingForOrder drops the unsettled commissions of a cancelled order inside tx.
func (s *Service) DeletePendingForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	removed, err := s.repo.WithTx(tx).DeletePendingForOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"order_id": orderID.String(), "removed": removed}), "pending commissions dropped")
	}
	return nil
}

func (s *Service) emitAttributed(ctx context.Context, tx *gorm.DB, id uuid.UUID, a Attribution) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCommissionAttributed,
		AggregateType: enums.AggregateCommission,
		AggregateID:   id,
		Data: payloads.CommissionAttributedEvent{
			CommissionID:    id,
			PartnerID:       a.PartnerID,
			OrderID:         a.OrderID,
			RevenueCents:    a.RevenueCents,
			CommissionCents: a.CommissionCents,
			RateApplied:     a.Rate.StringFixed(2),
		},
	})
}
