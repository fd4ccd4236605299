package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/grigobio237-eng/Youniqle-sub002/internal/inventory"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/ledger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/models"
	pkgerrors "github.com/grigobio237-eng/Youniqle-sub002/pkg/errors"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
)

// CreateProductInput describes a new catalog product and its opening stock.
type CreateProductInput struct {
	PartnerID  *uuid.UUID
	Name       string
	PriceCents int64
	Stock      int
	MinStock   int
	MaxStock   int
}

// Service registers products and opens their stock ledger row.
type Service struct {
	repo      *Repository
	inventory inventory.Service
	logg      *logger.Logger
}

func NewService(repo *Repository, inv inventory.Service, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{repo: repo, inventory: inv, logg: logg}, nil
}

func (s *Service) Create(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if input.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	opening := ledger.Stock{Stock: input.Stock, MinStock: input.MinStock, MaxStock: input.MaxStock}
	if !opening.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "opening stock must be non-negative")
	}

	product, err := s.repo.CreateProduct(ctx, &models.Product{
		PartnerID:  input.PartnerID,
		Name:       name,
		PriceCents: input.PriceCents,
		IsActive:   true,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	if err := s.inventory.Track(ctx, product.ID, opening); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithProductID(ctx, product.ID.String())
	s.logg.Info(s.logg.WithField(logCtx, "stock", opening.Stock), "product registered")
	return product, nil
}
