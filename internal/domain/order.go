package domain

import "time"

// OrderStatus enumerates the fulfillment lifecycle of an order.
type OrderStatus string

const (
	// OrderStatusPending is the state of a freshly materialized order.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing means the store started fulfilling the order.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped means the order left the warehouse.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered means the carrier confirmed delivery.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled means the order was cancelled after creation.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is materialized exactly once per provider checkout session. The
// unique constraint on ProviderSessionID is the sole idempotency guard
// against duplicate materialization.
type Order struct {
	ID                      string
	StoreID                 string
	ProviderSessionID       string
	ProviderPaymentIntentID string
	CustomerEmail           string
	CustomerName            string
	ShippingAddress         string
	SubtotalCents           int64
	TaxCents                int64
	ShippingCostCents       int64
	DiscountAmountCents     int64
	CouponCode              string
	TotalCents              int64
	Status                  OrderStatus
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// OrderItem is one purchased line of an order, immutable after creation
// except for the download counter on digital goods.
type OrderItem struct {
	ID             string
	OrderID        string
	ProductID      string
	ProductName    string
	VariantInfo    *VariantInfo
	Quantity       int
	UnitPriceCents int64
	DownloadToken  string
	DownloadCount  int
	CreatedAt      time.Time
}
