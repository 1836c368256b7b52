package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/shoploft/api/internal/domain"
)

func TestValidateCouponEndpoint(t *testing.T) {
	f := newRouterFixture(t)
	f.coupons.coupons["save20"] = domain.Coupon{
		ID: "c1", StoreID: "store-1", Code: "SAVE20", Description: "Spring sale",
		DiscountType: domain.DiscountTypePercentage, DiscountValue: 20, IsActive: true,
	}

	rec := postJSON(t, f.router, "/api/v1/coupons/validate",
		`{"code":"save20","cartTotalCents":999}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody(t, rec)
	if payload["valid"] != true {
		t.Fatalf("valid = %v, want true", payload["valid"])
	}
	coupon, ok := payload["coupon"].(map[string]any)
	if !ok || coupon["code"] != "SAVE20" || coupon["discountType"] != "percentage" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if coupon["discountAmountCents"] != float64(200) {
		t.Fatalf("discountAmountCents = %v, want 200 (999 at 20%%, rounded half up)", coupon["discountAmountCents"])
	}
}

func TestValidateCouponEndpointFailures(t *testing.T) {
	f := newRouterFixture(t)
	expired := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.coupons.coupons["old"] = domain.Coupon{
		ID: "c2", StoreID: "store-1", Code: "OLD", IsActive: true, ExpiresAt: &expired,
	}

	tests := []struct {
		name        string
		body        string
		wantMessage string
	}{
		{"unknown code", `{"code":"NOPE","cartTotalCents":1000}`, "Invalid coupon code"},
		{"expired", `{"code":"OLD","cartTotalCents":1000}`, "This coupon has expired"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, f.router, "/api/v1/coupons/validate", tc.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			payload := decodeBody(t, rec)
			if payload["valid"] != false {
				t.Fatalf("valid = %v, want false", payload["valid"])
			}
			if payload["error"] != tc.wantMessage {
				t.Fatalf("error = %v, want %q", payload["error"], tc.wantMessage)
			}
		})
	}
}
