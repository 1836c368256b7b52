package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shoploft/api/internal/domain"
	"github.com/shoploft/api/internal/payments"
	"github.com/shoploft/api/internal/platform/auth"
	"github.com/shoploft/api/internal/platform/httpx"
	"github.com/shoploft/api/internal/services"
)

// CheckoutHandlers serves session creation and the success-page
// confirmation fallback.
type CheckoutHandlers struct {
	checkout    *services.CheckoutService
	fulfillment *services.FulfillmentService
}

// NewCheckoutHandlers constructs the checkout endpoints.
func NewCheckoutHandlers(checkout *services.CheckoutService, fulfillment *services.FulfillmentService) (*CheckoutHandlers, error) {
	if checkout == nil {
		return nil, errors.New("checkout handlers: checkout service is required")
	}
	if fulfillment == nil {
		return nil, errors.New("checkout handlers: fulfillment service is required")
	}
	return &CheckoutHandlers{checkout: checkout, fulfillment: fulfillment}, nil
}

// Routes registers the checkout endpoints on the given router group.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	r.Post("/session", h.CreateSession)
	r.Post("/confirm", h.ConfirmSession)
}

type createSessionRequest struct {
	Items          []domain.CartLine `json:"items"`
	CouponCode     string            `json:"couponCode,omitempty"`
	GiftCardCode   string            `json:"giftCardCode,omitempty"`
	SavedAddressID string            `json:"savedAddressId,omitempty"`
	CustomerEmail  string            `json:"customerEmail,omitempty"`
}

type createSessionResponse struct {
	SessionID            string `json:"sessionId"`
	URL                  string `json:"url"`
	SubtotalCents        int64  `json:"subtotalCents"`
	CouponDiscountCents  int64  `json:"couponDiscountCents"`
	GiftCardAppliedCents int64  `json:"giftCardAppliedCents"`
	TotalCents           int64  `json:"totalCents"`
}

// CreateSession validates and prices the cart, then creates the provider
// checkout session the client redirects to.
func (h *CheckoutHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	input := services.CheckoutInput{
		Lines:          req.Items,
		CouponCode:     req.CouponCode,
		GiftCardCode:   req.GiftCardCode,
		SavedAddressID: req.SavedAddressID,
		CustomerEmail:  req.CustomerEmail,
	}
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		input.CustomerID = identity.CustomerID
		if input.CustomerEmail == "" {
			input.CustomerEmail = identity.Email
		}
	}

	result, err := h.checkout.CreateCheckoutSession(r.Context(), input)
	if err != nil {
		writeCheckoutError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, createSessionResponse{
		SessionID:            result.SessionID,
		URL:                  result.URL,
		SubtotalCents:        result.Quote.SubtotalCents,
		CouponDiscountCents:  result.Quote.CouponDiscountCents,
		GiftCardAppliedCents: result.Quote.GiftCardAppliedCents,
		TotalCents:           result.Quote.TotalCents,
	})
}

type confirmSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type confirmSessionResponse struct {
	Success       bool   `json:"success"`
	OrderID       string `json:"orderId,omitempty"`
	AlreadyExists bool   `json:"alreadyExists"`
}

// ConfirmSession is the fallback path hit from the success page: it
// materializes the order when the webhook has not arrived yet and is a
// no-op when it has.
func (h *CheckoutHandlers) ConfirmSession(w http.ResponseWriter, r *http.Request) {
	var req confirmSessionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	result, err := h.fulfillment.ReconcileSession(r.Context(), req.SessionID)
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		httpx.WriteError(r.Context(), w, httpx.NewError("session_not_found", "checkout session not found", http.StatusNotFound))
		return
	case errors.Is(err, services.ErrSessionNotPaid):
		httpx.WriteError(r.Context(), w, httpx.NewError("session_not_paid", "checkout session is not paid", http.StatusConflict))
		return
	case err != nil:
		httpx.WriteError(r.Context(), w, httpx.NewError("internal", "could not confirm checkout session", http.StatusInternalServerError))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, confirmSessionResponse{
		Success:       true,
		OrderID:       result.OrderID,
		AlreadyExists: result.AlreadyExists,
	})
}

func writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *services.InsufficientStockError

	switch {
	case errors.Is(err, services.ErrEmptyCart), errors.Is(err, services.ErrInvalidCartLine):
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_cart", "cart is empty or contains invalid lines", http.StatusBadRequest))
	case errors.As(err, &stockErr):
		httpx.WriteError(r.Context(), w, httpx.NewError("insufficient_stock", "one or more items exceed available stock", http.StatusConflict).
			WithDetails(map[string]any{"stockIssues": stockErr.Issues}))
	case errors.Is(err, services.ErrProductNotFound), errors.Is(err, services.ErrVariantNotFound):
		httpx.WriteError(r.Context(), w, httpx.NewError("unknown_item", "cart references an unknown product or variant", http.StatusBadRequest))
	case isCouponError(err):
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_coupon", services.CouponErrorMessage(err), http.StatusBadRequest))
	case errors.Is(err, services.ErrGiftCardNotFound), errors.Is(err, services.ErrGiftCardNotRedeemable):
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_gift_card", services.GiftCardErrorMessage(err), http.StatusBadRequest))
	case errors.Is(err, services.ErrAddressNotFound):
		httpx.WriteError(r.Context(), w, httpx.NewError("address_not_found", "saved address not found", http.StatusNotFound))
	case errors.Is(err, payments.ErrNotConfigured):
		httpx.WriteError(r.Context(), w, httpx.NewError("payments_unavailable", "payment provider is not configured", http.StatusInternalServerError))
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError("internal", "could not create checkout session", http.StatusInternalServerError))
	}
}

func isCouponError(err error) bool {
	return errors.Is(err, services.ErrCouponNotFound) ||
		errors.Is(err, services.ErrCouponInactive) ||
		errors.Is(err, services.ErrCouponExpired) ||
		errors.Is(err, services.ErrCouponNotStarted) ||
		errors.Is(err, services.ErrCouponExhausted) ||
		errors.Is(err, services.ErrCouponMinimumNotMet)
}
