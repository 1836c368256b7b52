package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shoploft/api/internal/domain"
	"github.com/shoploft/api/internal/repositories"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository constructs the Postgres-backed order repository.
func NewOrderRepository(db *sql.DB) repositories.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) GetBySessionID(ctx context.Context, providerSessionID string) (domain.Order, error) {
	const query = `
		SELECT id, store_id, provider_session_id, COALESCE(provider_payment_intent_id, ''),
		       customer_email, COALESCE(customer_name, ''), COALESCE(shipping_address, ''),
		       subtotal_cents, tax_cents, shipping_cost_cents, discount_amount_cents,
		       COALESCE(coupon_code, ''), total_cents, status, created_at, updated_at
		FROM orders
		WHERE provider_session_id = $1`

	var o domain.Order
	err := r.db.QueryRowContext(ctx, query, providerSessionID).Scan(
		&o.ID, &o.StoreID, &o.ProviderSessionID, &o.ProviderPaymentIntentID,
		&o.CustomerEmail, &o.CustomerName, &o.ShippingAddress,
		&o.SubtotalCents, &o.TaxCents, &o.ShippingCostCents, &o.DiscountAmountCents,
		&o.CouponCode, &o.TotalCents, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, mapRowError("order.get_by_session", err)
	}
	return o, nil
}

// CreateOrder inserts the order row and its items in one transaction. The
// unique index on provider_session_id makes the insert the idempotency
// arbiter: a duplicate materialization attempt surfaces as a conflict error.
func (r *orderRepository) CreateOrder(ctx context.Context, order domain.Order, items []domain.OrderItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return repositories.NewError("order.create", repositories.ErrorCodeUnavailable, err.Error(), err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const insertOrder = `
		INSERT INTO orders (
			id, store_id, provider_session_id, provider_payment_intent_id,
			customer_email, customer_name, shipping_address,
			subtotal_cents, tax_cents, shipping_cost_cents, discount_amount_cents,
			coupon_code, total_cents, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

	_, err = tx.ExecContext(ctx, insertOrder,
		order.ID, order.StoreID, order.ProviderSessionID, nullable(order.ProviderPaymentIntentID),
		order.CustomerEmail, nullable(order.CustomerName), nullable(order.ShippingAddress),
		order.SubtotalCents, order.TaxCents, order.ShippingCostCents, order.DiscountAmountCents,
		nullable(order.CouponCode), order.TotalCents, order.Status, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repositories.NewError("order.create", repositories.ErrorCodeConflict,
				fmt.Sprintf("order for session %s already exists", order.ProviderSessionID), err)
		}
		return repositories.NewError("order.create", repositories.ErrorCodeUnavailable, err.Error(), err)
	}

	const insertItem = `
		INSERT INTO order_items (
			id, order_id, product_id, product_name, variant_info,
			quantity, unit_price_cents, download_token, download_count, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	for _, item := range items {
		_, err = tx.ExecContext(ctx, insertItem,
			item.ID, order.ID, nullable(item.ProductID), item.ProductName,
			encodeVariantInfo(item.VariantInfo), item.Quantity, item.UnitPriceCents,
			nullable(item.DownloadToken), item.DownloadCount, item.CreatedAt,
		)
		if err != nil {
			return repositories.NewError("order.create_item", repositories.ErrorCodeUnavailable, err.Error(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return repositories.NewError("order.create", repositories.ErrorCodeConflict,
				fmt.Sprintf("order for session %s already exists", order.ProviderSessionID), err)
		}
		return repositories.NewError("order.create", repositories.ErrorCodeUnavailable, err.Error(), err)
	}
	return nil
}

func nullable(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
