package notifications

import "context"

// OrderConfirmation is the customer-facing receipt payload.
type OrderConfirmation struct {
	OrderID       string
	CustomerEmail string
	CustomerName  string
	StoreName     string
	Items         []OrderLine
	SubtotalCents int64
	DiscountCents int64
	TotalCents    int64
}

// OrderLine is one purchased line rendered in notification e-mails.
type OrderLine struct {
	ProductName    string
	VariantName    string
	Quantity       int
	UnitPriceCents int64
	DownloadToken  string
}

// NewOrderAlert notifies the store owner about a fresh order.
type NewOrderAlert struct {
	OrderID       string
	StoreName     string
	CustomerEmail string
	TotalCents    int64
	ItemCount     int
}

// LowStockAlert notifies the store owner that an item crossed the
// configured low-stock threshold.
type LowStockAlert struct {
	StoreName   string
	ProductName string
	VariantName string
	Remaining   int
	Threshold   int
}

// Mailer delivers transactional e-mail. Every send is best-effort: callers
// log failures and never propagate them into order processing.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, msg OrderConfirmation) error
	SendNewOrderAlert(ctx context.Context, msg NewOrderAlert) error
	SendLowStockAlert(ctx context.Context, msg LowStockAlert) error
}

// NopMailer discards every notification. Used in tests and in deployments
// without a configured e-mail provider.
type NopMailer struct{}

// SendOrderConfirmation implements Mailer.
func (NopMailer) SendOrderConfirmation(context.Context, OrderConfirmation) error { return nil }

// SendNewOrderAlert implements Mailer.
func (NopMailer) SendNewOrderAlert(context.Context, NewOrderAlert) error { return nil }

// SendLowStockAlert implements Mailer.
func (NopMailer) SendLowStockAlert(context.Context, LowStockAlert) error { return nil }
