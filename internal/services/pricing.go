package services

import "github.com/shoploft/api/internal/domain"

// Quote is the monetary breakdown of a checkout. The discount order is
// fixed: the coupon applies to the cart total first, then the gift card
// applies to the remainder. Every component is clamped so TotalCents never
// goes negative.
type Quote struct {
	SubtotalCents        int64
	CouponDiscountCents  int64
	GiftCardAppliedCents int64
	TotalCents           int64
}

// DiscountCents reports the combined discount across both instruments.
func (q Quote) DiscountCents() int64 {
	return q.CouponDiscountCents + q.GiftCardAppliedCents
}

// CartSubtotal sums unit price × quantity across the resolved lines.
func CartSubtotal(lines []domain.ResolvedLine) int64 {
	var subtotal int64
	for _, line := range lines {
		if line.Quantity <= 0 || line.UnitPriceCents <= 0 {
			continue
		}
		subtotal += line.UnitPriceCents * int64(line.Quantity)
	}
	return subtotal
}

// CouponDiscount computes the discount a coupon yields on the given cart
// total. Percentage discounts round to the nearest cent, half up. Fixed
// discounts are clamped to the cart total so the payable amount cannot go
// negative from an oversized coupon.
func CouponDiscount(coupon domain.Coupon, cartTotalCents int64) int64 {
	if cartTotalCents <= 0 || coupon.DiscountValue <= 0 {
		return 0
	}
	switch coupon.DiscountType {
	case domain.DiscountTypePercentage:
		discount := (cartTotalCents*coupon.DiscountValue + 50) / 100
		return clampCents(discount, cartTotalCents)
	case domain.DiscountTypeFixed:
		return clampCents(coupon.DiscountValue, cartTotalCents)
	default:
		return 0
	}
}

// ComputeQuote prices a resolved cart against the optional discount
// instruments. Pass nil / zero for instruments that are absent.
func ComputeQuote(lines []domain.ResolvedLine, coupon *domain.Coupon, giftCardBalanceCents int64) Quote {
	quote := Quote{SubtotalCents: CartSubtotal(lines)}

	if coupon != nil {
		quote.CouponDiscountCents = CouponDiscount(*coupon, quote.SubtotalCents)
	}
	afterCoupon := quote.SubtotalCents - quote.CouponDiscountCents

	if giftCardBalanceCents > 0 && afterCoupon > 0 {
		quote.GiftCardAppliedCents = giftCardBalanceCents
		if quote.GiftCardAppliedCents > afterCoupon {
			quote.GiftCardAppliedCents = afterCoupon
		}
	}

	quote.TotalCents = afterCoupon - quote.GiftCardAppliedCents
	return quote
}

func clampCents(value, ceiling int64) int64 {
	if value < 0 {
		return 0
	}
	if value > ceiling {
		return ceiling
	}
	return value
}
