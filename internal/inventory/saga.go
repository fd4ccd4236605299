package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	pkgerrors "github.com/grigobio237-eng/Youniqle-sub002/pkg/errors"
)

const maxParallelLines = 8

// Coalesce merges lines that reference the same product, keeping first-seen order.
func Coalesce(lines []Line) []Line {
	index := make(map[uuid.UUID]int, len(lines))
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		if pos, ok := index[line.ProductID]; ok {
			out[pos].Qty += line.Qty
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out
}

// ReserveAll reserves every line for the order. Lines touch independent
// products and run concurrently; if any line fails, the lines that may have
// been reserved are released and the first failure in line order is returned.
func (s *service) ReserveAll(ctx context.Context, orderID uuid.UUID, lines []Line) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	lines = scope(orderID, Coalesce(lines))
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}

	errs := make([]error, len(lines))
	var g errgroup.Group
	g.SetLimit(maxParallelLines)
	for i, line := range lines {
		g.Go(func() error {
			errs[i] = s.Reserve(ctx, line)
			return nil
		})
	}
	_ = g.Wait()

	var first error
	var compensate []Line
	for i, err := range errs {
		if err == nil {
			compensate = append(compensate, lines[i])
			continue
		}
		if first == nil {
			first = err
		}
		// a transport failure may have landed after commit; order-scoped release
		// is a no-op when nothing was reserved
		if !isDomainRejection(err) {
			compensate = append(compensate, lines[i])
		}
	}
	if first == nil {
		return nil
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":    orderID.String(),
		"lines":       len(lines),
		"compensated": len(compensate),
	})
	s.logg.Warn(logCtx, "order reservation failed; releasing reserved lines")

	// compensation must finish even if the caller gave up
	releaseCtx := context.WithoutCancel(ctx)
	if err := s.releaseLines(releaseCtx, compensate); err != nil {
		s.logg.Error(logCtx, "reservation compensation incomplete", err)
		return multierr.Append(first, fmt.Errorf("compensate reservation: %w", err))
	}
	return first
}

// ReleaseAll releases every line held by the order, attempting all lines even
// when some fail.
func (s *service) ReleaseAll(ctx context.Context, orderID uuid.UUID, lines []Line) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.releaseLines(ctx, scope(orderID, Coalesce(lines)))
}

func (s *service) releaseLines(ctx context.Context, lines []Line) error {
	errs := make([]error, len(lines))
	var g errgroup.Group
	g.SetLimit(maxParallelLines)
	for i, line := range lines {
		g.Go(func() error {
			if err := s.Release(ctx, line); err != nil {
				errs[i] = fmt.Errorf("release product %s: %w", line.ProductID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return multierr.Combine(errs...)
}

func scope(orderID uuid.UUID, lines []Line) []Line {
	out := make([]Line, len(lines))
	for i, line := range lines {
		line.OrderID = orderID
		out[i] = line
	}
	return out
}

func isDomainRejection(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return false
	}
	return typed.Code() != pkgerrors.CodeDependency && typed.Code() != pkgerrors.CodeInternal
}
