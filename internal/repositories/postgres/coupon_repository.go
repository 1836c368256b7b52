package postgres

import (
	"context"
	"database/sql"

	"github.com/shoploft/api/internal/domain"
	"github.com/shoploft/api/internal/repositories"
)

type couponRepository struct {
	db *sql.DB
}

// NewCouponRepository constructs the Postgres-backed coupon repository.
func NewCouponRepository(db *sql.DB) repositories.CouponRepository {
	return &couponRepository{db: db}
}

func (r *couponRepository) FindByCode(ctx context.Context, storeID, code string) (domain.Coupon, error) {
	const query = `
		SELECT id, store_id, code, COALESCE(description, ''), discount_type,
		       discount_value, minimum_order_amount_cents, max_uses,
		       current_uses, starts_at, expires_at, is_active
		FROM coupons
		WHERE store_id = $1 AND LOWER(code) = LOWER($2)`

	var (
		c         domain.Coupon
		maxUses   sql.NullInt64
		startsAt  sql.NullTime
		expiresAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, storeID, code).Scan(
		&c.ID, &c.StoreID, &c.Code, &c.Description, &c.DiscountType,
		&c.DiscountValue, &c.MinimumOrderAmountCents, &maxUses,
		&c.CurrentUses, &startsAt, &expiresAt, &c.IsActive,
	)
	if err != nil {
		return domain.Coupon{}, mapRowError("coupon.find", err)
	}
	if maxUses.Valid {
		uses := int(maxUses.Int64)
		c.MaxUses = &uses
	}
	if startsAt.Valid {
		t := startsAt.Time
		c.StartsAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		c.ExpiresAt = &t
	}
	return c, nil
}

// IncrementUsage is guarded by the usage cap so two racing checkouts cannot
// push current_uses past max_uses.
func (r *couponRepository) IncrementUsage(ctx context.Context, couponID string) error {
	const query = `
		UPDATE coupons
		SET current_uses = current_uses + 1
		WHERE id = $1 AND (max_uses IS NULL OR current_uses < max_uses)`

	result, err := r.db.ExecContext(ctx, query, couponID)
	if err != nil {
		return repositories.NewError("coupon.increment", repositories.ErrorCodeUnavailable, err.Error(), err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return repositories.NewError("coupon.increment", repositories.ErrorCodeUnavailable, err.Error(), err)
	}
	if affected == 0 {
		return repositories.NewError("coupon.increment", repositories.ErrorCodeConflict, "usage cap reached", nil)
	}
	return nil
}
