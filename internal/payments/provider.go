package payments

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured indicates provider credentials are missing.
	ErrNotConfigured = errors.New("payments: provider not configured")
	// ErrBadSignature indicates webhook signature verification failed.
	ErrBadSignature = errors.New("payments: invalid webhook signature")
	// ErrBadPayload indicates the webhook payload could not be decoded.
	ErrBadPayload = errors.New("payments: malformed webhook payload")
)

// SessionLineItem is one priced line to embed in a provider checkout
// session. Metadata carries enough product/variant identity to reconstruct
// order items later without re-deriving pricing.
type SessionLineItem struct {
	Name        string
	Description string
	Quantity    int64
	UnitAmount  int64
	Metadata    map[string]string
}

// SessionRequest captures everything needed to create a provider session.
type SessionRequest struct {
	Currency               string
	CustomerEmail          string
	SuccessURL             string
	CancelURL              string
	Items                  []SessionLineItem
	DiscountCents          int64
	DiscountLabel          string
	CollectShippingAddress bool
	ShippingCountries      []string
	Metadata               map[string]string
}

// Session is the created provider session the client gets redirected to.
type Session struct {
	ID              string
	URL             string
	PaymentIntentID string
}

// ConfirmedSession is the provider's authoritative view of a session after
// the customer returned from payment.
type ConfirmedSession struct {
	ID              string
	PaymentIntentID string
	CustomerEmail   string
	CustomerName    string
	ShippingAddress string
	AmountSubtotal  int64
	AmountDiscount  int64
	AmountShipping  int64
	AmountTax       int64
	AmountTotal     int64
	Metadata        map[string]string
	Paid            bool
}

// LineItem is one authoritative provider line item; Metadata mirrors what
// the session builder attached per line at creation time.
type LineItem struct {
	ProductName string
	Quantity    int
	UnitAmount  int64
	Metadata    map[string]string
}

// Event is the closed set of webhook outcomes. Handlers switch exhaustively
// on the concrete type instead of scattering event-type string comparisons.
type Event interface {
	isPaymentEvent()
}

// CheckoutCompleted signals a paid checkout session.
type CheckoutCompleted struct {
	Session ConfirmedSession
}

func (CheckoutCompleted) isPaymentEvent() {}

// Unhandled covers every event type this service does not act on; the
// webhook handler acknowledges it and stops.
type Unhandled struct {
	Type string
}

func (Unhandled) isPaymentEvent() {}

// Provider defines the payment-provider contract consumed by checkout and
// fulfillment.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error)
	GetSession(ctx context.Context, sessionID string) (ConfirmedSession, error)
	ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error)
	// ParseWebhookEvent verifies the signature and decodes the payload into
	// the event union. Signature failures return ErrBadSignature.
	ParseWebhookEvent(payload []byte, signatureHeader string) (Event, error)
}
