package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shoploft/api/internal/domain"
	"github.com/shoploft/api/internal/repositories"
)

// Coupon validation failures, ordered the way the checks run. Each maps to
// a distinct user-facing message so the cart UI can explain exactly which
// rule failed.
var (
	// ErrCouponNotFound indicates no coupon matches the code in this store.
	ErrCouponNotFound = errors.New("coupon: invalid code")
	// ErrCouponInactive indicates the coupon was turned off by an admin.
	ErrCouponInactive = errors.New("coupon: not active")
	// ErrCouponExpired indicates the coupon's validity window has passed.
	ErrCouponExpired = errors.New("coupon: expired")
	// ErrCouponNotStarted indicates the coupon's validity window has not opened.
	ErrCouponNotStarted = errors.New("coupon: not yet valid")
	// ErrCouponExhausted indicates the usage cap has been reached.
	ErrCouponExhausted = errors.New("coupon: usage limit reached")
	// ErrCouponMinimumNotMet indicates the cart total is below the coupon minimum.
	ErrCouponMinimumNotMet = errors.New("coupon: minimum order amount not met")
	// ErrCouponUnavailable indicates the coupon store could not be queried.
	ErrCouponUnavailable = errors.New("coupon: store unavailable")
)

// CouponErrorMessage renders the user-facing message for a validation failure.
func CouponErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrCouponNotFound):
		return "Invalid coupon code"
	case errors.Is(err, ErrCouponInactive):
		return "This coupon is no longer active"
	case errors.Is(err, ErrCouponExpired):
		return "This coupon has expired"
	case errors.Is(err, ErrCouponNotStarted):
		return "This coupon is not valid yet"
	case errors.Is(err, ErrCouponExhausted):
		return "This coupon has reached its usage limit"
	case errors.Is(err, ErrCouponMinimumNotMet):
		return "Your order does not meet the coupon minimum"
	default:
		return "Coupon could not be validated"
	}
}

// CouponServiceDeps wires the dependencies required by the coupon service.
type CouponServiceDeps struct {
	Coupons repositories.CouponRepository
	StoreID string
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

// CouponService validates coupons against their persisted state and commits
// usage counts after successful session creation.
type CouponService struct {
	coupons repositories.CouponRepository
	storeID string
	now     func() time.Time
	logger  func(ctx context.Context, event string, fields map[string]any)
}

// NewCouponService constructs a CouponService validating required dependencies.
func NewCouponService(deps CouponServiceDeps) (*CouponService, error) {
	if deps.Coupons == nil {
		return nil, errors.New("coupon service: coupon repository is required")
	}
	if strings.TrimSpace(deps.StoreID) == "" {
		return nil, errors.New("coupon service: store id is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &CouponService{
		coupons: deps.Coupons,
		storeID: deps.StoreID,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Validate runs the ordered eligibility checks: existence (case-insensitive
// within the store) → active → expiry window → start window → usage cap →
// minimum order amount. The first failing check wins.
func (s *CouponService) Validate(ctx context.Context, code string, cartTotalCents int64) (domain.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Coupon{}, ErrCouponNotFound
	}

	coupon, err := s.coupons.FindByCode(ctx, s.storeID, code)
	if err != nil {
		var repoErr *repositories.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Coupon{}, ErrCouponNotFound
		}
		return domain.Coupon{}, fmt.Errorf("%w: %v", ErrCouponUnavailable, err)
	}

	now := s.now()
	switch {
	case !coupon.IsActive:
		return domain.Coupon{}, ErrCouponInactive
	case coupon.ExpiresAt != nil && !coupon.ExpiresAt.After(now):
		return domain.Coupon{}, ErrCouponExpired
	case coupon.StartsAt != nil && coupon.StartsAt.After(now):
		return domain.Coupon{}, ErrCouponNotStarted
	case !coupon.UsageRemaining():
		return domain.Coupon{}, ErrCouponExhausted
	case cartTotalCents < coupon.MinimumOrderAmountCents:
		return domain.Coupon{}, ErrCouponMinimumNotMet
	}

	return coupon, nil
}

// CommitUsage bumps the coupon's usage counter. Called only after a
// checkout session was successfully created; a cap race losing here is
// logged, not surfaced, because the provider session already exists.
func (s *CouponService) CommitUsage(ctx context.Context, couponID string) {
	if err := s.coupons.IncrementUsage(ctx, couponID); err != nil {
		s.logger(ctx, "coupon.usage_commit_failed", map[string]any{
			"couponId": couponID,
			"error":    err.Error(),
		})
	}
}
