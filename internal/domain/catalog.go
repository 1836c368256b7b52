package domain

import "time"

// Product is a purchasable item owned by the store. When TrackInventory is
// false the InventoryCount is ignored and availability is unlimited. A
// product with variants does not use its own inventory count; each variant
// tracks stock independently.
type Product struct {
	ID             string
	StoreID        string
	Name           string
	Description    string
	PriceCents     int64
	TrackInventory bool
	InventoryCount *int
	IsDigital      bool
	Images         []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Available returns the purchasable quantity for the product itself.
// Untracked products report ok=false meaning "unlimited".
func (p Product) Available() (count int, tracked bool) {
	if !p.TrackInventory || p.InventoryCount == nil {
		return 0, false
	}
	return *p.InventoryCount, true
}

// Variant is a concrete option combination of a product. Its price is the
// parent price plus the adjustment, which may be negative.
type Variant struct {
	ID                   string
	ProductID            string
	Name                 string
	PriceAdjustmentCents int64
	TrackInventory       bool
	InventoryCount       *int
	Options              map[string]string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Available returns the purchasable quantity for the variant.
func (v Variant) Available() (count int, tracked bool) {
	if !v.TrackInventory || v.InventoryCount == nil {
		return 0, false
	}
	return *v.InventoryCount, true
}

// Address is a saved customer shipping address, referenced from checkout by
// its identifier.
type Address struct {
	ID         string
	CustomerID string
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}
