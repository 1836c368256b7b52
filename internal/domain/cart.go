package domain

import "strings"

// VariantInfo carries the client-resolved variant presentation for a cart line.
// The price adjustment is re-resolved server side before any money math.
type VariantInfo struct {
	Name                 string            `json:"name"`
	PriceAdjustmentCents int64             `json:"priceAdjustmentCents"`
	Options              map[string]string `json:"options,omitempty"`
}

// CartLine is one entry of the ephemeral, client-held cart snapshot. Carts
// have no server-side identity; they are reconstructed on every request.
type CartLine struct {
	ProductID   string       `json:"productId"`
	Quantity    int          `json:"quantity"`
	VariantID   string       `json:"variantId,omitempty"`
	VariantInfo *VariantInfo `json:"variantInfo,omitempty"`
}

// Valid reports whether the line carries the minimum data required to price it.
func (l CartLine) Valid() bool {
	return strings.TrimSpace(l.ProductID) != "" && l.Quantity >= 1
}

// ResolvedLine is a cart line after the catalog lookup: the authoritative
// unit price (variant adjustment included) and the flags pricing and stock
// validation depend on.
type ResolvedLine struct {
	ProductID      string
	VariantID      string
	ProductName    string
	VariantName    string
	VariantOptions map[string]string
	Quantity       int
	UnitPriceCents int64
	IsDigital      bool
}

// StockIssue describes one cart line whose requested quantity exceeds the
// tracked inventory. It is a transient DTO surfaced on 409 responses, never
// persisted.
type StockIssue struct {
	ProductID   string `json:"productId"`
	VariantID   string `json:"variantId,omitempty"`
	ProductName string `json:"productName"`
	VariantName string `json:"variantName,omitempty"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}
