package domain

import "time"

// DiscountType enumerates the two coupon discount mechanisms.
type DiscountType string

const (
	// DiscountTypePercentage discounts a percentage of the cart total.
	DiscountTypePercentage DiscountType = "percentage"
	// DiscountTypeFixed discounts a fixed amount of cents, clamped to the cart total.
	DiscountTypeFixed DiscountType = "fixed"
)

// Coupon is a store-owned discount code. Codes are unique per store,
// compared case-insensitively. CurrentUses only ever increases and is
// committed when a checkout session is successfully created, before payment.
type Coupon struct {
	ID                      string
	StoreID                 string
	Code                    string
	Description             string
	DiscountType            DiscountType
	DiscountValue           int64
	MinimumOrderAmountCents int64
	MaxUses                 *int
	CurrentUses             int
	StartsAt                *time.Time
	ExpiresAt               *time.Time
	IsActive                bool
}

// UsageRemaining reports whether the coupon can still be redeemed.
func (c Coupon) UsageRemaining() bool {
	return c.MaxUses == nil || c.CurrentUses < *c.MaxUses
}

// GiftCardStatus enumerates gift card lifecycle states.
type GiftCardStatus string

const (
	// GiftCardStatusActive means the card can be applied to a checkout.
	GiftCardStatusActive GiftCardStatus = "active"
	// GiftCardStatusDisabled means an admin turned the card off.
	GiftCardStatusDisabled GiftCardStatus = "disabled"
	// GiftCardStatusExhausted means the balance reached zero.
	GiftCardStatusExhausted GiftCardStatus = "exhausted"
)

// GiftCard is a prepaid balance. The balance decreases monotonically and is
// debited at order completion, not at session creation; validation never
// mutates it.
type GiftCard struct {
	ID                  string
	Code                string
	OriginalAmountCents int64
	CurrentBalanceCents int64
	Status              GiftCardStatus
}

// Redeemable reports whether the card can contribute to a checkout.
func (g GiftCard) Redeemable() bool {
	return g.Status == GiftCardStatusActive && g.CurrentBalanceCents > 0
}
