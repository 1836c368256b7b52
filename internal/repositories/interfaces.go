package repositories

import (
	"context"

	"github.com/shoploft/api/internal/domain"
)

// CatalogRepository resolves products and variants and mutates tracked
// inventory. Decrements are atomic conditional updates, never read-then-write.
type CatalogRepository interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	GetVariant(ctx context.Context, id string) (domain.Variant, error)
	// DecrementInventory reduces the tracked count by the purchased quantity,
	// clamped at zero, and reports the counts before and after so callers can
	// detect low-stock threshold crossings. Untracked entities report
	// Tracked=false and mutate nothing.
	DecrementInventory(ctx context.Context, req InventoryDecrement) (InventoryLevel, error)
}

// InventoryDecrement identifies the entity to decrement: variant-level when
// VariantID is set, product-level otherwise.
type InventoryDecrement struct {
	ProductID string
	VariantID string
	Quantity  int
}

// InventoryLevel reports an inventory transition.
type InventoryLevel struct {
	OldCount int
	NewCount int
	Tracked  bool
}

// CouponRepository persists store coupons.
type CouponRepository interface {
	// FindByCode matches the code case-insensitively within the store.
	FindByCode(ctx context.Context, storeID, code string) (domain.Coupon, error)
	// IncrementUsage bumps current_uses by one, guarded by the usage cap.
	// Returns a conflict error when the cap was reached concurrently.
	IncrementUsage(ctx context.Context, couponID string) error
}

// GiftCardRepository persists gift cards.
type GiftCardRepository interface {
	FindByCode(ctx context.Context, code string) (domain.GiftCard, error)
	// Debit atomically reduces the balance by at most amountCents, clamped by
	// the remaining balance, marking the card exhausted at zero. Returns the
	// remaining balance.
	Debit(ctx context.Context, giftCardID string, amountCents int64) (int64, error)
}

// OrderRepository materializes orders. The unique constraint on
// provider_session_id is the idempotency guard: CreateOrder returns a
// conflict error when an order for the session already exists.
type OrderRepository interface {
	GetBySessionID(ctx context.Context, providerSessionID string) (domain.Order, error)
	CreateOrder(ctx context.Context, order domain.Order, items []domain.OrderItem) error
}

// AddressRepository resolves saved customer addresses referenced at checkout.
type AddressRepository interface {
	GetAddress(ctx context.Context, id string) (domain.Address, error)
}
