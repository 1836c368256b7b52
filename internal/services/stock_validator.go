package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shoploft/api/internal/domain"
	"github.com/shoploft/api/internal/repositories"
)

var (
	// ErrProductNotFound indicates a cart line references an unknown product.
	ErrProductNotFound = errors.New("stock: product not found")
	// ErrVariantNotFound indicates a cart line references an unknown variant.
	ErrVariantNotFound = errors.New("stock: variant not found")
	// ErrStockUnavailable indicates the catalog store could not be queried.
	ErrStockUnavailable = errors.New("stock: catalog unavailable")
)

// StockValidator resolves cart lines against the catalog and checks every
// requested quantity against tracked inventory. Validation never exits
// early: the caller receives the complete issue list in one pass so the
// client can correct all problems in a single round trip.
type StockValidator struct {
	catalog repositories.CatalogRepository
}

// NewStockValidator constructs a StockValidator.
func NewStockValidator(catalog repositories.CatalogRepository) (*StockValidator, error) {
	if catalog == nil {
		return nil, errors.New("stock validator: catalog repository is required")
	}
	return &StockValidator{catalog: catalog}, nil
}

// Validate resolves each line to its authoritative unit price and checks
// availability. Variant-level inventory wins when a variant is selected;
// untracked entities are unlimited. Lines referencing unknown catalog
// entries fail the whole validation with a typed error.
func (v *StockValidator) Validate(ctx context.Context, lines []domain.CartLine) ([]domain.ResolvedLine, []domain.StockIssue, error) {
	resolved := make([]domain.ResolvedLine, 0, len(lines))
	issues := make([]domain.StockIssue, 0)

	for _, line := range lines {
		if !line.Valid() {
			return nil, nil, fmt.Errorf("%w: %q", ErrProductNotFound, line.ProductID)
		}

		product, err := v.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, nil, v.translateCatalogError(err, ErrProductNotFound, line.ProductID)
		}

		entry := domain.ResolvedLine{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: product.PriceCents,
			IsDigital:      product.IsDigital,
		}

		if strings.TrimSpace(line.VariantID) != "" {
			variant, err := v.catalog.GetVariant(ctx, line.VariantID)
			if err != nil {
				return nil, nil, v.translateCatalogError(err, ErrVariantNotFound, line.VariantID)
			}
			entry.VariantID = variant.ID
			entry.VariantName = variant.Name
			entry.VariantOptions = variant.Options
			entry.UnitPriceCents = product.PriceCents + variant.PriceAdjustmentCents

			if available, tracked := variant.Available(); tracked && line.Quantity > available {
				issues = append(issues, domain.StockIssue{
					ProductID:   product.ID,
					VariantID:   variant.ID,
					ProductName: product.Name,
					VariantName: variant.Name,
					Requested:   line.Quantity,
					Available:   available,
				})
			}
		} else if available, tracked := product.Available(); tracked && line.Quantity > available {
			issues = append(issues, domain.StockIssue{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   line.Quantity,
				Available:   available,
			})
		}

		resolved = append(resolved, entry)
	}

	return resolved, issues, nil
}

func (v *StockValidator) translateCatalogError(err error, notFound error, id string) error {
	var repoErr *repositories.Error
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %q", notFound, id)
	}
	return fmt.Errorf("%w: %v", ErrStockUnavailable, err)
}
