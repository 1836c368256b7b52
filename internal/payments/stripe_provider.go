package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeCouponAPI interface {
	New(params *stripe.CouponParams) (*stripe.Coupon, error)
}

type stripeClients struct {
	sessions stripeSessionAPI
	coupons  stripeCouponAPI
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey        string
	WebhookSecret string
	AccountID     string
	Backends      *stripe.Backends
	Logger        StripeLogger
	Clock         func() time.Time
	Clients       *stripeClients
	Verify        func(payload []byte, header, secret string) (stripe.Event, error)
}

// StripeProvider implements the Provider interface using Stripe Checkout.
type StripeProvider struct {
	api           stripeClients
	account       string
	webhookSecret string
	clock         func() time.Time
	logger        StripeLogger
	verify        func(payload []byte, header, secret string) (stripe.Event, error)
}

// NewStripeProvider constructs a Stripe Provider using the given
// configuration. A missing API key does not fail construction: session
// calls on an unconfigured provider return ErrNotConfigured, so the
// checkout path answers at request level instead of the process refusing
// to start.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)

	var clients stripeClients
	switch {
	case cfg.Clients != nil:
		clients = *cfg.Clients
		if clients.sessions == nil || clients.coupons == nil {
			return nil, errors.New("stripe: incomplete client configuration")
		}
	case apiKey != "":
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			sessions: sc.CheckoutSessions,
			coupons:  sc.Coupons,
		}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	verify := cfg.Verify
	if verify == nil {
		verify = webhook.ConstructEvent
	}

	return &StripeProvider{
		api:           clients,
		account:       strings.TrimSpace(cfg.AccountID),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
		verify: verify,
	}, nil
}

// CreateCheckoutSession creates a Stripe Checkout session carrying the priced
// line items, the combined discount as a fresh one-off coupon, and the
// metadata needed to materialize the order later.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error) {
	if p == nil {
		return Session{}, errors.New("stripe: provider is nil")
	}
	if p.api.sessions == nil {
		return Session{}, ErrNotConfigured
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.Metadata[k] = v
		}
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, item := range req.Items {
		line := &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(max64(item.Quantity, 1)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(item.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
		}
		if item.Description != "" {
			line.PriceData.ProductData.Description = stripe.String(item.Description)
		}
		if len(item.Metadata) > 0 {
			line.PriceData.ProductData.Metadata = make(map[string]string, len(item.Metadata))
			for k, v := range item.Metadata {
				line.PriceData.ProductData.Metadata[k] = v
			}
		}
		lineItems = append(lineItems, line)
	}
	if len(lineItems) == 0 {
		return Session{}, errors.New("stripe: at least one line item is required")
	}
	params.LineItems = lineItems

	if req.DiscountCents > 0 {
		couponID, err := p.createOneOffCoupon(ctx, req.DiscountCents, currency, req.DiscountLabel)
		if err != nil {
			return Session{}, err
		}
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(couponID)},
		}
	}

	if req.CollectShippingAddress {
		countries := make([]*string, 0, len(req.ShippingCountries))
		for _, c := range req.ShippingCountries {
			countries = append(countries, stripe.String(strings.ToUpper(c)))
		}
		params.ShippingAddressCollection = &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: countries,
		}
	}

	params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{}
	if len(req.Metadata) > 0 {
		params.PaymentIntentData.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.PaymentIntentData.Metadata[k] = v
		}
	}

	session, err := p.api.sessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	intentID := ""
	if session.PaymentIntent != nil {
		intentID = session.PaymentIntent.ID
	}

	p.logger(ctx, "payments.stripe.session.created", map[string]any{
		"sessionId":     session.ID,
		"paymentIntent": intentID,
		"currency":      session.Currency,
	})

	return Session{
		ID:              session.ID,
		URL:             session.URL,
		PaymentIntentID: intentID,
	}, nil
}

// createOneOffCoupon builds a single-use amount-off coupon. One is created
// fresh per checkout and never reused across sessions.
func (p *StripeProvider) createOneOffCoupon(ctx context.Context, amountOff int64, currency, label string) (string, error) {
	params := &stripe.CouponParams{
		AmountOff: stripe.Int64(amountOff),
		Currency:  stripe.String(currency),
		Duration:  stripe.String(string(stripe.CouponDurationOnce)),
	}
	params.Context = ctx
	if label = strings.TrimSpace(label); label != "" {
		params.Name = stripe.String(label)
	}
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}

	coupon, err := p.api.coupons.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create discount coupon: %w", err)
	}
	return coupon.ID, nil
}

// GetSession retrieves the authoritative session state from Stripe.
func (p *StripeProvider) GetSession(ctx context.Context, sessionID string) (ConfirmedSession, error) {
	if p == nil {
		return ConfirmedSession{}, errors.New("stripe: provider is nil")
	}
	if p.api.sessions == nil {
		return ConfirmedSession{}, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}

	session, err := p.api.sessions.Get(sessionID, params)
	if err != nil {
		return ConfirmedSession{}, fmt.Errorf("stripe: get checkout session: %w", err)
	}
	return confirmedSessionFromStripe(session), nil
}

// ListLineItems fetches the provider's line items for a session with the
// price→product expansion so per-line metadata is readable.
func (p *StripeProvider) ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error) {
	if p == nil {
		return nil, errors.New("stripe: provider is nil")
	}
	if p.api.sessions == nil {
		return nil, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items.data.price.product")
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}

	session, err := p.api.sessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: list line items: %w", err)
	}
	if session.LineItems == nil {
		return nil, nil
	}

	items := make([]LineItem, 0, len(session.LineItems.Data))
	for _, li := range session.LineItems.Data {
		if li == nil {
			continue
		}
		item := LineItem{
			ProductName: li.Description,
			Quantity:    int(li.Quantity),
		}
		if li.Price != nil {
			item.UnitAmount = li.Price.UnitAmount
			if li.Price.Product != nil {
				if li.Price.Product.Name != "" {
					item.ProductName = li.Price.Product.Name
				}
				if len(li.Price.Product.Metadata) > 0 {
					item.Metadata = make(map[string]string, len(li.Price.Product.Metadata))
					for k, v := range li.Price.Product.Metadata {
						item.Metadata[k] = v
					}
				}
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// ParseWebhookEvent verifies the Stripe signature and maps the event onto
// the closed event union.
func (p *StripeProvider) ParseWebhookEvent(payload []byte, signatureHeader string) (Event, error) {
	if p == nil {
		return nil, errors.New("stripe: provider is nil")
	}
	if p.webhookSecret == "" || strings.TrimSpace(signatureHeader) == "" {
		return nil, ErrBadSignature
	}

	event, err := p.verify(payload, signatureHeader, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	if event.Type != "checkout.session.completed" {
		return Unhandled{Type: string(event.Type)}, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return CheckoutCompleted{Session: confirmedSessionFromStripe(&session)}, nil
}

func confirmedSessionFromStripe(session *stripe.CheckoutSession) ConfirmedSession {
	if session == nil {
		return ConfirmedSession{}
	}

	confirmed := ConfirmedSession{
		ID:          session.ID,
		AmountTotal: session.AmountTotal,
		Paid:        session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	confirmed.AmountSubtotal = session.AmountSubtotal
	if session.PaymentIntent != nil {
		confirmed.PaymentIntentID = session.PaymentIntent.ID
	}
	if session.TotalDetails != nil {
		confirmed.AmountDiscount = session.TotalDetails.AmountDiscount
		confirmed.AmountShipping = session.TotalDetails.AmountShipping
		confirmed.AmountTax = session.TotalDetails.AmountTax
	}
	if details := session.CustomerDetails; details != nil {
		confirmed.CustomerEmail = details.Email
		confirmed.CustomerName = details.Name
		confirmed.ShippingAddress = formatAddress(details.Address)
	}
	if len(session.Metadata) > 0 {
		confirmed.Metadata = make(map[string]string, len(session.Metadata))
		for k, v := range session.Metadata {
			confirmed.Metadata[k] = v
		}
	}
	return confirmed
}

func formatAddress(addr *stripe.Address) string {
	if addr == nil {
		return ""
	}
	parts := make([]string, 0, 6)
	for _, part := range []string{addr.Line1, addr.Line2, addr.City, addr.State, addr.PostalCode, addr.Country} {
		if v := strings.TrimSpace(part); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
