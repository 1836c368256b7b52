package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shoploft/api/internal/domain"
	"github.com/shoploft/api/internal/payments"
	"github.com/shoploft/api/internal/repositories"
)

var (
	// ErrEmptyCart indicates a checkout was requested with no lines.
	ErrEmptyCart = errors.New("checkout: cart is empty")
	// ErrInvalidCartLine indicates a line is missing its product or quantity.
	ErrInvalidCartLine = errors.New("checkout: invalid cart line")
	// ErrAddressNotFound indicates the referenced saved address does not
	// exist or belongs to another customer.
	ErrAddressNotFound = errors.New("checkout: saved address not found")
)

// InsufficientStockError carries the complete list of lines whose requested
// quantity exceeds tracked inventory so the client can fix the cart in one
// round trip.
type InsufficientStockError struct {
	Issues []domain.StockIssue
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("checkout: insufficient stock for %d line(s)", len(e.Issues))
}

// CheckoutInput is the client-supplied checkout command. The identity fields
// come from the verified customer token, never from the request body.
type CheckoutInput struct {
	Lines          []domain.CartLine
	CouponCode     string
	GiftCardCode   string
	SavedAddressID string
	CustomerID     string
	CustomerEmail  string
}

// CheckoutResult is the created provider session plus the priced quote the
// session was built from.
type CheckoutResult struct {
	SessionID string
	URL       string
	Quote     Quote
}

// CheckoutServiceDeps wires the collaborators of the checkout service.
type CheckoutServiceDeps struct {
	Stock     *StockValidator
	Coupons   *CouponService
	GiftCards *GiftCardService
	Addresses repositories.AddressRepository
	Provider  payments.Provider

	StoreID           string
	Currency          string
	SuccessURL        string
	CancelURL         string
	ShippingCountries []string

	Logger func(ctx context.Context, event string, fields map[string]any)
}

// CheckoutService validates a cart snapshot, prices it, and creates the
// provider checkout session the customer is redirected to. All pricing is
// recomputed server side from the catalog; client-sent prices are ignored.
type CheckoutService struct {
	stock     *StockValidator
	coupons   *CouponService
	giftCards *GiftCardService
	addresses repositories.AddressRepository
	provider  payments.Provider

	storeID           string
	currency          string
	successURL        string
	cancelURL         string
	shippingCountries []string

	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService constructs a CheckoutService validating dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (*CheckoutService, error) {
	switch {
	case deps.Stock == nil:
		return nil, errors.New("checkout service: stock validator is required")
	case deps.Coupons == nil:
		return nil, errors.New("checkout service: coupon service is required")
	case deps.GiftCards == nil:
		return nil, errors.New("checkout service: gift card service is required")
	case deps.Addresses == nil:
		return nil, errors.New("checkout service: address repository is required")
	case deps.Provider == nil:
		return nil, errors.New("checkout service: payment provider is required")
	case strings.TrimSpace(deps.StoreID) == "":
		return nil, errors.New("checkout service: store id is required")
	case strings.TrimSpace(deps.SuccessURL) == "" || strings.TrimSpace(deps.CancelURL) == "":
		return nil, errors.New("checkout service: redirect urls are required")
	}

	currency := strings.ToLower(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "usd"
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &CheckoutService{
		stock:             deps.Stock,
		coupons:           deps.Coupons,
		giftCards:         deps.GiftCards,
		addresses:         deps.Addresses,
		provider:          deps.Provider,
		storeID:           deps.StoreID,
		currency:          currency,
		successURL:        deps.SuccessURL,
		cancelURL:         deps.CancelURL,
		shippingCountries: deps.ShippingCountries,
		logger:            logger,
	}, nil
}

// CreateCheckoutSession runs the full checkout pipeline: cart validation,
// stock check, discount validation, pricing, then provider session creation.
// The coupon usage counter is committed only after the provider session
// exists; nothing is committed when session creation fails.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, input CheckoutInput) (CheckoutResult, error) {
	if len(input.Lines) == 0 {
		return CheckoutResult{}, ErrEmptyCart
	}
	for _, line := range input.Lines {
		if !line.Valid() {
			return CheckoutResult{}, fmt.Errorf("%w: product %q quantity %d", ErrInvalidCartLine, line.ProductID, line.Quantity)
		}
	}

	resolved, issues, err := s.stock.Validate(ctx, input.Lines)
	if err != nil {
		return CheckoutResult{}, err
	}
	if len(issues) > 0 {
		return CheckoutResult{}, &InsufficientStockError{Issues: issues}
	}

	subtotal := CartSubtotal(resolved)

	var coupon *domain.Coupon
	if strings.TrimSpace(input.CouponCode) != "" {
		found, err := s.coupons.Validate(ctx, input.CouponCode, subtotal)
		if err != nil {
			return CheckoutResult{}, err
		}
		coupon = &found
	}

	var giftCard *domain.GiftCard
	if strings.TrimSpace(input.GiftCardCode) != "" {
		found, err := s.giftCards.Validate(ctx, input.GiftCardCode)
		if err != nil {
			return CheckoutResult{}, err
		}
		giftCard = &found
	}

	var giftBalance int64
	if giftCard != nil {
		giftBalance = giftCard.CurrentBalanceCents
	}
	quote := ComputeQuote(resolved, coupon, giftBalance)

	savedAddress, err := s.resolveSavedAddress(ctx, input)
	if err != nil {
		return CheckoutResult{}, err
	}

	req := s.buildSessionRequest(input, resolved, quote, coupon, giftCard, savedAddress)
	session, err := s.provider.CreateCheckoutSession(ctx, req)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("checkout: create provider session: %w", err)
	}

	if coupon != nil {
		s.coupons.CommitUsage(ctx, coupon.ID)
	}

	s.logger(ctx, "checkout.session_created", map[string]any{
		"sessionId":     session.ID,
		"subtotalCents": quote.SubtotalCents,
		"totalCents":    quote.TotalCents,
	})

	return CheckoutResult{SessionID: session.ID, URL: session.URL, Quote: quote}, nil
}

func (s *CheckoutService) resolveSavedAddress(ctx context.Context, input CheckoutInput) (*domain.Address, error) {
	id := strings.TrimSpace(input.SavedAddressID)
	if id == "" {
		return nil, nil
	}

	address, err := s.addresses.GetAddress(ctx, id)
	if err != nil {
		var repoErr *repositories.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("checkout: resolve address: %w", err)
	}
	if input.CustomerID == "" || address.CustomerID != input.CustomerID {
		return nil, ErrAddressNotFound
	}
	return &address, nil
}

func (s *CheckoutService) buildSessionRequest(
	input CheckoutInput,
	resolved []domain.ResolvedLine,
	quote Quote,
	coupon *domain.Coupon,
	giftCard *domain.GiftCard,
	savedAddress *domain.Address,
) payments.SessionRequest {
	items := make([]payments.SessionLineItem, 0, len(resolved))
	hasPhysical := false
	for _, line := range resolved {
		if !line.IsDigital {
			hasPhysical = true
		}
		name := line.ProductName
		if line.VariantName != "" {
			name = fmt.Sprintf("%s (%s)", name, line.VariantName)
		}
		items = append(items, payments.SessionLineItem{
			Name:       name,
			Quantity:   int64(line.Quantity),
			UnitAmount: line.UnitPriceCents,
			Metadata: map[string]string{
				"product_id":   line.ProductID,
				"variant_id":   line.VariantID,
				"variant_name": line.VariantName,
				"unit_price":   strconv.FormatInt(line.UnitPriceCents, 10),
				"digital":      strconv.FormatBool(line.IsDigital),
			},
		})
	}

	metadata := map[string]string{
		"store_id": s.storeID,
	}
	if input.CustomerID != "" {
		metadata["customer_id"] = input.CustomerID
	}
	if coupon != nil {
		metadata["coupon_id"] = coupon.ID
		metadata["coupon_code"] = coupon.Code
	}
	if giftCard != nil && quote.GiftCardAppliedCents > 0 {
		metadata["gift_card_id"] = giftCard.ID
		metadata["gift_card_applied_cents"] = strconv.FormatInt(quote.GiftCardAppliedCents, 10)
	}
	if savedAddress != nil {
		metadata["saved_address_id"] = savedAddress.ID
	}

	label := "Discount"
	if coupon != nil && quote.GiftCardAppliedCents == 0 {
		label = coupon.Code
	}

	return payments.SessionRequest{
		Currency:               s.currency,
		CustomerEmail:          input.CustomerEmail,
		SuccessURL:             s.successURL,
		CancelURL:              s.cancelURL,
		Items:                  items,
		DiscountCents:          quote.DiscountCents(),
		DiscountLabel:          label,
		CollectShippingAddress: hasPhysical && savedAddress == nil,
		ShippingCountries:      s.shippingCountries,
		Metadata:               metadata,
	}
}
