package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/shoploft/api/internal/domain"
	"github.com/shoploft/api/internal/notifications"
	"github.com/shoploft/api/internal/payments"
	"github.com/shoploft/api/internal/repositories"
)

var (
	// ErrSessionNotPaid indicates reconciliation was attempted on a session
	// the provider does not report as paid.
	ErrSessionNotPaid = errors.New("fulfillment: session not paid")
	// ErrSessionNotFound indicates the provider has no such session.
	ErrSessionNotFound = errors.New("fulfillment: session not found")
)

// MaterializeResult reports the outcome of turning a paid session into an
// order. AlreadyExists is true when a previous delivery or the racing
// reconciliation path created the order first.
type MaterializeResult struct {
	OrderID       string
	AlreadyExists bool
}

// WebhookResult describes what a webhook delivery amounted to. Skipped is
// true for event types the service does not act on and for completed
// sessions the provider reports as unpaid.
type WebhookResult struct {
	EventType string
	Skipped   bool
	MaterializeResult
}

// FulfillmentServiceDeps wires the collaborators of the fulfillment service.
type FulfillmentServiceDeps struct {
	Orders    repositories.OrderRepository
	Catalog   repositories.CatalogRepository
	GiftCards repositories.GiftCardRepository
	Provider  payments.Provider
	Mailer    notifications.Mailer

	StoreID           string
	StoreName         string
	LowStockThreshold int

	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

// FulfillmentService materializes orders from paid provider sessions. Both
// entry points, the webhook and the fallback reconciliation on the success
// page, converge on the same materialization path; the unique constraint on
// the provider session id guarantees at most one order per session no
// matter how many times either path runs.
type FulfillmentService struct {
	orders    repositories.OrderRepository
	catalog   repositories.CatalogRepository
	giftCards repositories.GiftCardRepository
	provider  payments.Provider
	mailer    notifications.Mailer

	storeID           string
	storeName         string
	lowStockThreshold int

	now    func() time.Time
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewFulfillmentService constructs a FulfillmentService validating dependencies.
func NewFulfillmentService(deps FulfillmentServiceDeps) (*FulfillmentService, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("fulfillment service: order repository is required")
	case deps.Catalog == nil:
		return nil, errors.New("fulfillment service: catalog repository is required")
	case deps.GiftCards == nil:
		return nil, errors.New("fulfillment service: gift card repository is required")
	case deps.Provider == nil:
		return nil, errors.New("fulfillment service: payment provider is required")
	case strings.TrimSpace(deps.StoreID) == "":
		return nil, errors.New("fulfillment service: store id is required")
	}

	mailer := deps.Mailer
	if mailer == nil {
		mailer = notifications.NopMailer{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &FulfillmentService{
		orders:            deps.Orders,
		catalog:           deps.Catalog,
		giftCards:         deps.GiftCards,
		provider:          deps.Provider,
		mailer:            mailer,
		storeID:           deps.StoreID,
		storeName:         deps.StoreName,
		lowStockThreshold: deps.LowStockThreshold,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// HandleWebhook verifies and processes one webhook delivery. Signature and
// payload errors propagate so the transport can reject the delivery; every
// failure past verification is logged and absorbed, because the provider
// retries on non-2xx and a retry cannot fix a processing bug.
func (s *FulfillmentService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (WebhookResult, error) {
	event, err := s.provider.ParseWebhookEvent(payload, signatureHeader)
	if err != nil {
		return WebhookResult{}, err
	}

	switch ev := event.(type) {
	case payments.CheckoutCompleted:
		result := WebhookResult{EventType: "checkout.session.completed"}
		if !ev.Session.Paid {
			s.logger(ctx, "fulfillment.session_unpaid", map[string]any{
				"sessionId": ev.Session.ID,
			})
			result.Skipped = true
			return result, nil
		}
		materialized, err := s.materialize(ctx, ev.Session)
		if err != nil {
			s.logger(ctx, "fulfillment.materialize_failed", map[string]any{
				"sessionId": ev.Session.ID,
				"error":     err.Error(),
			})
			return result, nil
		}
		result.MaterializeResult = materialized
		return result, nil
	case payments.Unhandled:
		return WebhookResult{EventType: ev.Type, Skipped: true}, nil
	default:
		return WebhookResult{Skipped: true}, nil
	}
}

// ReconcileSession is the fallback path for the success-page redirect: it
// fetches the session from the provider and materializes the order if the
// webhook has not arrived yet. Unpaid sessions are rejected.
func (s *FulfillmentService) ReconcileSession(ctx context.Context, sessionID string) (MaterializeResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return MaterializeResult{}, ErrSessionNotFound
	}

	session, err := s.provider.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			return MaterializeResult{}, err
		}
		return MaterializeResult{}, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	if !session.Paid {
		return MaterializeResult{}, ErrSessionNotPaid
	}
	return s.materialize(ctx, session)
}

// materialize turns a paid session into a persisted order exactly once. The
// pre-check keeps the common retry cheap; the unique constraint on the
// session id decides races the pre-check cannot see. Inventory, gift card
// debit, and notifications run only on the path that won the insert.
func (s *FulfillmentService) materialize(ctx context.Context, session payments.ConfirmedSession) (MaterializeResult, error) {
	if existing, err := s.orders.GetBySessionID(ctx, session.ID); err == nil {
		return MaterializeResult{OrderID: existing.ID, AlreadyExists: true}, nil
	} else if !isNotFound(err) {
		return MaterializeResult{}, fmt.Errorf("fulfillment: idempotency check: %w", err)
	}

	lines, err := s.provider.ListLineItems(ctx, session.ID)
	if err != nil {
		return MaterializeResult{}, fmt.Errorf("fulfillment: list session line items: %w", err)
	}

	order, items, adjustments := s.buildOrder(session, lines)
	if err := s.orders.CreateOrder(ctx, order, items); err != nil {
		var repoErr *repositories.Error
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			// Lost the race against the other path; the winner owns the
			// side effects.
			if existing, getErr := s.orders.GetBySessionID(ctx, session.ID); getErr == nil {
				return MaterializeResult{OrderID: existing.ID, AlreadyExists: true}, nil
			}
			return MaterializeResult{AlreadyExists: true}, nil
		}
		return MaterializeResult{}, fmt.Errorf("fulfillment: create order: %w", err)
	}

	s.logger(ctx, "fulfillment.order_created", map[string]any{
		"orderId":    order.ID,
		"sessionId":  session.ID,
		"totalCents": order.TotalCents,
	})

	s.adjustInventory(ctx, adjustments)
	s.settleGiftCard(ctx, session.Metadata)
	s.notify(ctx, order, items)

	return MaterializeResult{OrderID: order.ID}, nil
}

// inventoryAdjustment pairs an order line with the catalog identity its
// stock decrement targets; order items themselves only keep presentation
// data about the variant.
type inventoryAdjustment struct {
	ProductID   string
	VariantID   string
	ProductName string
	VariantName string
	Quantity    int
}

func (s *FulfillmentService) buildOrder(session payments.ConfirmedSession, lines []payments.LineItem) (domain.Order, []domain.OrderItem, []inventoryAdjustment) {
	now := s.now()
	order := domain.Order{
		ID:                      ulid.Make().String(),
		StoreID:                 s.storeID,
		ProviderSessionID:       session.ID,
		ProviderPaymentIntentID: session.PaymentIntentID,
		CustomerEmail:           session.CustomerEmail,
		CustomerName:            session.CustomerName,
		ShippingAddress:         session.ShippingAddress,
		SubtotalCents:           session.AmountSubtotal,
		TaxCents:                session.AmountTax,
		ShippingCostCents:       session.AmountShipping,
		DiscountAmountCents:     session.AmountDiscount,
		CouponCode:              session.Metadata["coupon_code"],
		TotalCents:              session.AmountTotal,
		Status:                  domain.OrderStatusPending,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	items := make([]domain.OrderItem, 0, len(lines))
	adjustments := make([]inventoryAdjustment, 0, len(lines))
	for _, line := range lines {
		item := domain.OrderItem{
			ID:             ulid.Make().String(),
			OrderID:        order.ID,
			ProductID:      line.Metadata["product_id"],
			ProductName:    line.ProductName,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitAmount,
			CreatedAt:      now,
		}
		if name := line.Metadata["variant_name"]; name != "" {
			item.VariantInfo = &domain.VariantInfo{Name: name}
		}
		digital := line.Metadata["digital"] == "true"
		if digital {
			item.DownloadToken = uuid.NewString()
		}
		items = append(items, item)

		// Digital goods have no stock to decrement even when the catalog
		// row tracks a count.
		if item.ProductID != "" && !digital {
			adjustments = append(adjustments, inventoryAdjustment{
				ProductID:   item.ProductID,
				VariantID:   line.Metadata["variant_id"],
				ProductName: line.ProductName,
				VariantName: line.Metadata["variant_name"],
				Quantity:    line.Quantity,
			})
		}
	}
	return order, items, adjustments
}

// adjustInventory decrements tracked stock for every purchased line. Counts
// clamp at zero; a decrement failure never blocks the order, it only loses
// accuracy until the next stock take. The low-stock alert fires only on the
// decrement that crosses the threshold, so repeated sales below the
// threshold stay quiet.
func (s *FulfillmentService) adjustInventory(ctx context.Context, adjustments []inventoryAdjustment) {
	for _, adj := range adjustments {
		level, err := s.catalog.DecrementInventory(ctx, repositories.InventoryDecrement{
			ProductID: adj.ProductID,
			VariantID: adj.VariantID,
			Quantity:  adj.Quantity,
		})
		if err != nil {
			s.logger(ctx, "fulfillment.inventory_decrement_failed", map[string]any{
				"productId": adj.ProductID,
				"variantId": adj.VariantID,
				"error":     err.Error(),
			})
			continue
		}
		if !level.Tracked {
			continue
		}
		if level.OldCount > s.lowStockThreshold && level.NewCount <= s.lowStockThreshold {
			alert := notifications.LowStockAlert{
				StoreName:   s.storeName,
				ProductName: adj.ProductName,
				VariantName: adj.VariantName,
				Remaining:   level.NewCount,
				Threshold:   s.lowStockThreshold,
			}
			if err := s.mailer.SendLowStockAlert(ctx, alert); err != nil {
				s.logger(ctx, "fulfillment.low_stock_alert_failed", map[string]any{
					"productId": adj.ProductID,
					"error":     err.Error(),
				})
			}
		}
	}
}

// settleGiftCard debits the amount the session builder recorded in the
// session metadata. The repository clamps the debit by the remaining
// balance, so a stale balance can only under-collect, never overdraw.
func (s *FulfillmentService) settleGiftCard(ctx context.Context, metadata map[string]string) {
	giftCardID := metadata["gift_card_id"]
	if giftCardID == "" {
		return
	}
	amount, err := strconv.ParseInt(metadata["gift_card_applied_cents"], 10, 64)
	if err != nil || amount <= 0 {
		return
	}

	remaining, err := s.giftCards.Debit(ctx, giftCardID, amount)
	if err != nil {
		s.logger(ctx, "fulfillment.gift_card_debit_failed", map[string]any{
			"giftCardId": giftCardID,
			"error":      err.Error(),
		})
		return
	}
	s.logger(ctx, "fulfillment.gift_card_debited", map[string]any{
		"giftCardId":     giftCardID,
		"amountCents":    amount,
		"remainingCents": remaining,
	})
}

func (s *FulfillmentService) notify(ctx context.Context, order domain.Order, items []domain.OrderItem) {
	if order.CustomerEmail != "" {
		confirmation := notifications.OrderConfirmation{
			OrderID:       order.ID,
			CustomerEmail: order.CustomerEmail,
			CustomerName:  order.CustomerName,
			StoreName:     s.storeName,
			SubtotalCents: order.SubtotalCents,
			DiscountCents: order.DiscountAmountCents,
			TotalCents:    order.TotalCents,
		}
		for _, item := range items {
			variantName := ""
			if item.VariantInfo != nil {
				variantName = item.VariantInfo.Name
			}
			confirmation.Items = append(confirmation.Items, notifications.OrderLine{
				ProductName:    item.ProductName,
				VariantName:    variantName,
				Quantity:       item.Quantity,
				UnitPriceCents: item.UnitPriceCents,
				DownloadToken:  item.DownloadToken,
			})
		}
		if err := s.mailer.SendOrderConfirmation(ctx, confirmation); err != nil {
			s.logger(ctx, "fulfillment.order_confirmation_failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
		}
	}

	alert := notifications.NewOrderAlert{
		OrderID:       order.ID,
		StoreName:     s.storeName,
		CustomerEmail: order.CustomerEmail,
		TotalCents:    order.TotalCents,
		ItemCount:     len(items),
	}
	if err := s.mailer.SendNewOrderAlert(ctx, alert); err != nil {
		s.logger(ctx, "fulfillment.new_order_alert_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
}

func isNotFound(err error) bool {
	var repoErr *repositories.Error
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
