package payments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v78"
)

type fakeSessionAPI struct {
	newParams  []*stripe.CheckoutSessionParams
	newResult  *stripe.CheckoutSession
	newErr     error
	getResult  *stripe.CheckoutSession
	getErr     error
	lastGetID  string
	lastParams *stripe.CheckoutSessionParams
}

func (f *fakeSessionAPI) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.newParams = append(f.newParams, params)
	if f.newErr != nil {
		return nil, f.newErr
	}
	return f.newResult, nil
}

func (f *fakeSessionAPI) Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.lastGetID = id
	f.lastParams = params
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getResult, nil
}

type fakeCouponAPI struct {
	params []*stripe.CouponParams
	result *stripe.Coupon
	err    error
}

func (f *fakeCouponAPI) New(params *stripe.CouponParams) (*stripe.Coupon, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestProvider(t *testing.T, sessions *fakeSessionAPI, coupons *fakeCouponAPI, verify func([]byte, string, string) (stripe.Event, error)) *StripeProvider {
	t.Helper()
	provider, err := NewStripeProvider(StripeProviderConfig{
		WebhookSecret: "whsec_test",
		Clients:       &stripeClients{sessions: sessions, coupons: coupons},
		Verify:        verify,
	})
	if err != nil {
		t.Fatalf("NewStripeProvider: %v", err)
	}
	return provider
}

func TestCreateCheckoutSessionBuildsParams(t *testing.T) {
	sessions := &fakeSessionAPI{
		newResult: &stripe.CheckoutSession{
			ID:            "cs_1",
			URL:           "https://checkout.stripe.com/cs_1",
			PaymentIntent: &stripe.PaymentIntent{ID: "pi_1"},
		},
	}
	coupons := &fakeCouponAPI{result: &stripe.Coupon{ID: "co_1"}}
	provider := newTestProvider(t, sessions, coupons, nil)

	session, err := provider.CreateCheckoutSession(context.Background(), SessionRequest{
		Currency:   "USD",
		SuccessURL: "https://shop/success",
		CancelURL:  "https://shop/cancel",
		Items: []SessionLineItem{
			{Name: "Widget (Large)", Quantity: 2, UnitAmount: 2500,
				Metadata: map[string]string{"product_id": "p1", "variant_id": "v1"}},
		},
		DiscountCents:          500,
		DiscountLabel:          "SAVE",
		CollectShippingAddress: true,
		ShippingCountries:      []string{"us", "ca"},
		Metadata:               map[string]string{"store_id": "store-1"},
	})
	if err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}
	if session.ID != "cs_1" || session.PaymentIntentID != "pi_1" {
		t.Fatalf("unexpected session: %+v", session)
	}

	if len(sessions.newParams) != 1 {
		t.Fatalf("session creations = %d, want 1", len(sessions.newParams))
	}
	params := sessions.newParams[0]
	if got := *params.LineItems[0].PriceData.Currency; got != "usd" {
		t.Fatalf("currency = %q, want usd", got)
	}
	if got := params.LineItems[0].PriceData.ProductData.Metadata["product_id"]; got != "p1" {
		t.Fatalf("line metadata product_id = %q", got)
	}
	if params.Metadata["store_id"] != "store-1" {
		t.Fatalf("session metadata missing: %v", params.Metadata)
	}
	if params.PaymentIntentData == nil || params.PaymentIntentData.Metadata["store_id"] != "store-1" {
		t.Fatal("payment intent metadata missing")
	}
	if params.ShippingAddressCollection == nil || len(params.ShippingAddressCollection.AllowedCountries) != 2 {
		t.Fatal("shipping address collection missing")
	}
	if got := *params.ShippingAddressCollection.AllowedCountries[0]; got != "US" {
		t.Fatalf("country = %q, want US", got)
	}

	// One fresh one-off coupon per discounted checkout.
	if len(coupons.params) != 1 {
		t.Fatalf("coupon creations = %d, want 1", len(coupons.params))
	}
	couponParams := coupons.params[0]
	if *couponParams.AmountOff != 500 || *couponParams.Duration != string(stripe.CouponDurationOnce) {
		t.Fatalf("unexpected coupon params: %+v", couponParams)
	}
	if len(params.Discounts) != 1 || *params.Discounts[0].Coupon != "co_1" {
		t.Fatal("discount not attached to session")
	}
}

func TestCreateCheckoutSessionNoDiscountSkipsCoupon(t *testing.T) {
	sessions := &fakeSessionAPI{newResult: &stripe.CheckoutSession{ID: "cs_1"}}
	coupons := &fakeCouponAPI{result: &stripe.Coupon{ID: "co_1"}}
	provider := newTestProvider(t, sessions, coupons, nil)

	_, err := provider.CreateCheckoutSession(context.Background(), SessionRequest{
		Currency:   "usd",
		SuccessURL: "https://shop/success",
		CancelURL:  "https://shop/cancel",
		Items:      []SessionLineItem{{Name: "Widget", Quantity: 1, UnitAmount: 100}},
	})
	if err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}
	if len(coupons.params) != 0 {
		t.Fatalf("coupon created for zero discount")
	}
}

func TestCreateCheckoutSessionRequiresItems(t *testing.T) {
	provider := newTestProvider(t, &fakeSessionAPI{}, &fakeCouponAPI{}, nil)

	_, err := provider.CreateCheckoutSession(context.Background(), SessionRequest{
		Currency:   "usd",
		SuccessURL: "https://shop/success",
		CancelURL:  "https://shop/cancel",
	})
	if err == nil {
		t.Fatal("expected error for empty line items")
	}
}

func TestUnconfiguredProviderRejectsSessionCalls(t *testing.T) {
	provider, err := NewStripeProvider(StripeProviderConfig{})
	if err != nil {
		t.Fatalf("NewStripeProvider without credentials: %v", err)
	}

	_, err = provider.CreateCheckoutSession(context.Background(), SessionRequest{
		Currency:   "usd",
		SuccessURL: "https://shop/success",
		CancelURL:  "https://shop/cancel",
		Items:      []SessionLineItem{{Name: "Widget", Quantity: 1, UnitAmount: 100}},
	})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("CreateCheckoutSession err = %v, want ErrNotConfigured", err)
	}
	if _, err := provider.GetSession(context.Background(), "cs_1"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("GetSession err = %v, want ErrNotConfigured", err)
	}
	if _, err := provider.ListLineItems(context.Background(), "cs_1"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("ListLineItems err = %v, want ErrNotConfigured", err)
	}
}

func TestListLineItemsReadsExpandedMetadata(t *testing.T) {
	sessions := &fakeSessionAPI{
		getResult: &stripe.CheckoutSession{
			ID: "cs_1",
			LineItems: &stripe.LineItemList{
				Data: []*stripe.LineItem{
					{
						Description: "fallback name",
						Quantity:    2,
						Price: &stripe.Price{
							UnitAmount: 2500,
							Product: &stripe.Product{
								Name:     "Widget",
								Metadata: map[string]string{"product_id": "p1", "digital": "true"},
							},
						},
					},
				},
			},
		},
	}
	provider := newTestProvider(t, sessions, &fakeCouponAPI{}, nil)

	items, err := provider.ListLineItems(context.Background(), "cs_1")
	if err != nil {
		t.Fatalf("ListLineItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].ProductName != "Widget" || items[0].UnitAmount != 2500 || items[0].Quantity != 2 {
		t.Fatalf("unexpected item: %+v", items[0])
	}
	if items[0].Metadata["product_id"] != "p1" {
		t.Fatalf("metadata missing: %v", items[0].Metadata)
	}
	if sessions.lastGetID != "cs_1" {
		t.Fatalf("get id = %q", sessions.lastGetID)
	}
}

func TestParseWebhookEventCompleted(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{
		"id":             "cs_1",
		"payment_status": "paid",
		"amount_total":   8000,
		"metadata":       map[string]string{"coupon_code": "SAVE20"},
		"customer_details": map[string]any{
			"email": "b@example.com",
			"name":  "Buyer",
			"address": map[string]any{
				"line1": "1 Main St", "city": "Springfield", "postal_code": "11111", "country": "US",
			},
		},
		"total_details": map[string]any{"amount_discount": 2000},
	})
	verify := func(payload []byte, header, secret string) (stripe.Event, error) {
		if secret != "whsec_test" || header != "sig" {
			t.Fatalf("unexpected verify inputs %q %q", header, secret)
		}
		return stripe.Event{
			Type: "checkout.session.completed",
			Data: &stripe.EventData{Raw: raw},
		}, nil
	}
	provider := newTestProvider(t, &fakeSessionAPI{}, &fakeCouponAPI{}, verify)

	event, err := provider.ParseWebhookEvent([]byte("{}"), "sig")
	if err != nil {
		t.Fatalf("ParseWebhookEvent: %v", err)
	}
	completed, ok := event.(CheckoutCompleted)
	if !ok {
		t.Fatalf("event type = %T, want CheckoutCompleted", event)
	}
	session := completed.Session
	if !session.Paid || session.ID != "cs_1" || session.AmountTotal != 8000 {
		t.Fatalf("unexpected session: %+v", session)
	}
	if session.CustomerEmail != "b@example.com" {
		t.Fatalf("customer email = %q", session.CustomerEmail)
	}
	if session.ShippingAddress != "1 Main St, Springfield, 11111, US" {
		t.Fatalf("shipping address = %q", session.ShippingAddress)
	}
	if session.AmountDiscount != 2000 {
		t.Fatalf("amount discount = %d", session.AmountDiscount)
	}
	if session.Metadata["coupon_code"] != "SAVE20" {
		t.Fatalf("metadata = %v", session.Metadata)
	}
}

func TestParseWebhookEventOtherTypesUnhandled(t *testing.T) {
	verify := func([]byte, string, string) (stripe.Event, error) {
		return stripe.Event{Type: "invoice.paid"}, nil
	}
	provider := newTestProvider(t, &fakeSessionAPI{}, &fakeCouponAPI{}, verify)

	event, err := provider.ParseWebhookEvent([]byte("{}"), "sig")
	if err != nil {
		t.Fatalf("ParseWebhookEvent: %v", err)
	}
	unhandled, ok := event.(Unhandled)
	if !ok || unhandled.Type != "invoice.paid" {
		t.Fatalf("unexpected event: %#v", event)
	}
}

func TestParseWebhookEventSignatureFailures(t *testing.T) {
	verify := func([]byte, string, string) (stripe.Event, error) {
		return stripe.Event{}, errors.New("signature mismatch")
	}
	provider := newTestProvider(t, &fakeSessionAPI{}, &fakeCouponAPI{}, verify)

	if _, err := provider.ParseWebhookEvent([]byte("{}"), "bad"); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
	if _, err := provider.ParseWebhookEvent([]byte("{}"), ""); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("missing header err = %v, want ErrBadSignature", err)
	}

	// Missing webhook secret rejects everything.
	bare, err := NewStripeProvider(StripeProviderConfig{
		Clients: &stripeClients{sessions: &fakeSessionAPI{}, coupons: &fakeCouponAPI{}},
	})
	if err != nil {
		t.Fatalf("NewStripeProvider: %v", err)
	}
	if _, err := bare.ParseWebhookEvent([]byte("{}"), "sig"); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("no secret err = %v, want ErrBadSignature", err)
	}
}
