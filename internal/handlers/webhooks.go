package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shoploft/api/internal/payments"
	"github.com/shoploft/api/internal/platform/httpx"
	"github.com/shoploft/api/internal/services"
)

const signatureHeader = "Stripe-Signature"

// WebhookHandlers ingests payment provider webhook deliveries.
type WebhookHandlers struct {
	fulfillment *services.FulfillmentService
}

// NewWebhookHandlers constructs the webhook endpoints.
func NewWebhookHandlers(fulfillment *services.FulfillmentService) (*WebhookHandlers, error) {
	if fulfillment == nil {
		return nil, errors.New("webhook handlers: fulfillment service is required")
	}
	return &WebhookHandlers{fulfillment: fulfillment}, nil
}

// Routes registers the webhook endpoints on the given router group.
func (h *WebhookHandlers) Routes(r chi.Router) {
	r.Post("/stripe", h.Stripe)
}

// Stripe handles a provider delivery. Only signature and payload failures
// are rejected; everything past verification acknowledges with 200 so the
// provider does not retry deliveries a retry cannot fix.
func (h *WebhookHandlers) Stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := readLimitedBody(r)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_payload", "could not read webhook payload", http.StatusBadRequest))
		return
	}

	result, err := h.fulfillment.HandleWebhook(r.Context(), payload, r.Header.Get(signatureHeader))
	switch {
	case errors.Is(err, payments.ErrBadSignature):
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		return
	case errors.Is(err, payments.ErrBadPayload):
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_payload", "webhook payload could not be decoded", http.StatusBadRequest))
		return
	case err != nil:
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_payload", "webhook could not be processed", http.StatusBadRequest))
		return
	}

	response := map[string]any{"received": true}
	if result.OrderID != "" {
		response["orderId"] = result.OrderID
	}
	httpx.WriteJSON(w, http.StatusOK, response)
}
