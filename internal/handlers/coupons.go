package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shoploft/api/internal/platform/httpx"
	"github.com/shoploft/api/internal/services"
)

// CouponHandlers serves the standalone coupon validation endpoint the cart
// UI calls before checkout.
type CouponHandlers struct {
	coupons *services.CouponService
}

// NewCouponHandlers constructs the coupon endpoints.
func NewCouponHandlers(coupons *services.CouponService) (*CouponHandlers, error) {
	if coupons == nil {
		return nil, errors.New("coupon handlers: coupon service is required")
	}
	return &CouponHandlers{coupons: coupons}, nil
}

// Routes registers the coupon endpoints on the given router group.
func (h *CouponHandlers) Routes(r chi.Router) {
	r.Post("/validate", h.Validate)
}

type validateCouponRequest struct {
	Code           string `json:"code"`
	CartTotalCents int64  `json:"cartTotalCents"`
}

type validatedCoupon struct {
	Code                string `json:"code"`
	Description         string `json:"description,omitempty"`
	DiscountType        string `json:"discountType"`
	DiscountValue       int64  `json:"discountValue"`
	DiscountAmountCents int64  `json:"discountAmountCents"`
}

type validateCouponResponse struct {
	Valid  bool             `json:"valid"`
	Coupon *validatedCoupon `json:"coupon,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// Validate checks a coupon against the cart total and reports the discount
// it would yield. Validation is read-only; nothing is committed here.
// Rule failures answer 200 with valid=false so the cart UI can render the
// message inline; only transport and store failures use the error envelope.
func (h *CouponHandlers) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := decodeJSONBody(r, &req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	coupon, err := h.coupons.Validate(r.Context(), req.Code, req.CartTotalCents)
	if err != nil {
		if errors.Is(err, services.ErrCouponUnavailable) {
			httpx.WriteError(r.Context(), w, httpx.NewError("internal", "could not validate coupon", http.StatusInternalServerError))
			return
		}
		httpx.WriteJSON(w, http.StatusOK, validateCouponResponse{
			Valid: false,
			Error: services.CouponErrorMessage(err),
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, validateCouponResponse{
		Valid: true,
		Coupon: &validatedCoupon{
			Code:                coupon.Code,
			Description:         coupon.Description,
			DiscountType:        string(coupon.DiscountType),
			DiscountValue:       coupon.DiscountValue,
			DiscountAmountCents: services.CouponDiscount(coupon, req.CartTotalCents),
		},
	})
}
