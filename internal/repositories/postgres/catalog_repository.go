package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/shoploft/api/internal/domain"
	"github.com/shoploft/api/internal/repositories"
)

type catalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository constructs the Postgres-backed catalog repository.
func NewCatalogRepository(db *sql.DB) repositories.CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	const query = `
		SELECT id, store_id, name, COALESCE(description, ''), price_cents,
		       track_inventory, inventory_count, is_digital, images,
		       created_at, updated_at
		FROM products
		WHERE id = $1`

	var (
		p         domain.Product
		inventory sql.NullInt64
		images    pq.StringArray
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.StoreID, &p.Name, &p.Description, &p.PriceCents,
		&p.TrackInventory, &inventory, &p.IsDigital, &images,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Product{}, mapRowError("catalog.get_product", err)
	}
	if inventory.Valid {
		count := int(inventory.Int64)
		p.InventoryCount = &count
	}
	p.Images = images
	return p, nil
}

func (r *catalogRepository) GetVariant(ctx context.Context, id string) (domain.Variant, error) {
	const query = `
		SELECT id, product_id, name, price_adjustment_cents,
		       track_inventory, inventory_count, options, created_at, updated_at
		FROM product_variants
		WHERE id = $1`

	var (
		v         domain.Variant
		inventory sql.NullInt64
		options   []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&v.ID, &v.ProductID, &v.Name, &v.PriceAdjustmentCents,
		&v.TrackInventory, &inventory, &options, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return domain.Variant{}, mapRowError("catalog.get_variant", err)
	}
	if inventory.Valid {
		count := int(inventory.Int64)
		v.InventoryCount = &count
	}
	if opts, err := decodeOptions(options); err == nil {
		v.Options = opts
	}
	return v, nil
}

// DecrementInventory clamps at zero in a single conditional UPDATE. The old
// count is captured with a locked sub-select so the before/after pair is
// consistent under concurrent decrements.
func (r *catalogRepository) DecrementInventory(ctx context.Context, req repositories.InventoryDecrement) (repositories.InventoryLevel, error) {
	if req.Quantity <= 0 {
		return repositories.InventoryLevel{}, repositories.NewError("catalog.decrement", repositories.ErrorCodeUnknown, "quantity must be positive", nil)
	}

	table, idColumn, id := "products", "id", req.ProductID
	if req.VariantID != "" {
		table, idColumn, id = "product_variants", "id", req.VariantID
	}

	query := `
		WITH current AS (
			SELECT inventory_count AS old_count
			FROM ` + table + `
			WHERE ` + idColumn + ` = $1 AND track_inventory AND inventory_count IS NOT NULL
			FOR UPDATE
		)
		UPDATE ` + table + ` t
		SET inventory_count = GREATEST(t.inventory_count - $2, 0)
		FROM current
		WHERE t.` + idColumn + ` = $1
		RETURNING current.old_count, t.inventory_count`

	var level repositories.InventoryLevel
	err := r.db.QueryRowContext(ctx, query, id, req.Quantity).Scan(&level.OldCount, &level.NewCount)
	if errors.Is(err, sql.ErrNoRows) {
		// Untracked entity: nothing to decrement.
		return repositories.InventoryLevel{Tracked: false}, nil
	}
	if err != nil {
		return repositories.InventoryLevel{}, repositories.NewError("catalog.decrement", repositories.ErrorCodeUnavailable, err.Error(), err)
	}
	level.Tracked = true
	return level, nil
}
