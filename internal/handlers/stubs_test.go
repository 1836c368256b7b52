package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shoploft/api/internal/domain"
	"github.com/shoploft/api/internal/notifications"
	"github.com/shoploft/api/internal/payments"
	"github.com/shoploft/api/internal/repositories"
	"github.com/shoploft/api/internal/services"
)

func intPtr(v int) *int { return &v }

type stubCatalog struct {
	products map[string]domain.Product
	variants map[string]domain.Variant
}

func (s *stubCatalog) GetProduct(_ context.Context, id string) (domain.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, repositories.NewError("stub", repositories.ErrorCodeNotFound, "product not found", nil)
	}
	return p, nil
}

func (s *stubCatalog) GetVariant(_ context.Context, id string) (domain.Variant, error) {
	v, ok := s.variants[id]
	if !ok {
		return domain.Variant{}, repositories.NewError("stub", repositories.ErrorCodeNotFound, "variant not found", nil)
	}
	return v, nil
}

func (s *stubCatalog) DecrementInventory(_ context.Context, req repositories.InventoryDecrement) (repositories.InventoryLevel, error) {
	p, ok := s.products[req.ProductID]
	if !ok || !p.TrackInventory || p.InventoryCount == nil {
		return repositories.InventoryLevel{Tracked: false}, nil
	}
	old := *p.InventoryCount
	next := old - req.Quantity
	if next < 0 {
		next = 0
	}
	p.InventoryCount = intPtr(next)
	s.products[req.ProductID] = p
	return repositories.InventoryLevel{OldCount: old, NewCount: next, Tracked: true}, nil
}

type stubCoupons struct {
	coupons map[string]domain.Coupon
}

func (s *stubCoupons) FindByCode(_ context.Context, storeID, code string) (domain.Coupon, error) {
	c, ok := s.coupons[strings.ToLower(code)]
	if !ok || c.StoreID != storeID {
		return domain.Coupon{}, repositories.NewError("stub", repositories.ErrorCodeNotFound, "coupon not found", nil)
	}
	return c, nil
}

func (s *stubCoupons) IncrementUsage(context.Context, string) error { return nil }

type stubGiftCards struct {
	cards map[string]domain.GiftCard
}

func (s *stubGiftCards) FindByCode(_ context.Context, code string) (domain.GiftCard, error) {
	card, ok := s.cards[code]
	if !ok {
		return domain.GiftCard{}, repositories.NewError("stub", repositories.ErrorCodeNotFound, "gift card not found", nil)
	}
	return card, nil
}

func (s *stubGiftCards) Debit(_ context.Context, _ string, amount int64) (int64, error) {
	return 0, nil
}

type stubOrders struct {
	orders map[string]domain.Order
}

func (s *stubOrders) GetBySessionID(_ context.Context, sessionID string) (domain.Order, error) {
	order, ok := s.orders[sessionID]
	if !ok {
		return domain.Order{}, repositories.NewError("stub", repositories.ErrorCodeNotFound, "order not found", nil)
	}
	return order, nil
}

func (s *stubOrders) CreateOrder(_ context.Context, order domain.Order, _ []domain.OrderItem) error {
	if _, exists := s.orders[order.ProviderSessionID]; exists {
		return repositories.NewError("stub", repositories.ErrorCodeConflict, "duplicate order", nil)
	}
	s.orders[order.ProviderSessionID] = order
	return nil
}

type stubAddresses struct{}

func (stubAddresses) GetAddress(context.Context, string) (domain.Address, error) {
	return domain.Address{}, repositories.NewError("stub", repositories.ErrorCodeNotFound, "address not found", nil)
}

type stubProvider struct {
	session  payments.Session
	sessions map[string]payments.ConfirmedSession
	lines    map[string][]payments.LineItem

	createErr error
	parsed    payments.Event
	parseErr  error
}

func (s *stubProvider) CreateCheckoutSession(_ context.Context, _ payments.SessionRequest) (payments.Session, error) {
	if s.createErr != nil {
		return payments.Session{}, s.createErr
	}
	return s.session, nil
}

func (s *stubProvider) GetSession(_ context.Context, id string) (payments.ConfirmedSession, error) {
	session, ok := s.sessions[id]
	if !ok {
		return payments.ConfirmedSession{}, repositories.NewError("stub", repositories.ErrorCodeNotFound, "session not found", nil)
	}
	return session, nil
}

func (s *stubProvider) ListLineItems(_ context.Context, id string) ([]payments.LineItem, error) {
	return s.lines[id], nil
}

func (s *stubProvider) ParseWebhookEvent([]byte, string) (payments.Event, error) {
	if s.parseErr != nil {
		return nil, s.parseErr
	}
	return s.parsed, nil
}

type routerFixture struct {
	catalog   *stubCatalog
	coupons   *stubCoupons
	giftCards *stubGiftCards
	orders    *stubOrders
	provider  *stubProvider
	router    http.Handler
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	f := &routerFixture{
		catalog:   &stubCatalog{products: map[string]domain.Product{}, variants: map[string]domain.Variant{}},
		coupons:   &stubCoupons{coupons: map[string]domain.Coupon{}},
		giftCards: &stubGiftCards{cards: map[string]domain.GiftCard{}},
		orders:    &stubOrders{orders: map[string]domain.Order{}},
		provider: &stubProvider{
			session:  payments.Session{ID: "cs_test_1", URL: "https://pay.example.com/cs_test_1"},
			sessions: map[string]payments.ConfirmedSession{},
			lines:    map[string][]payments.LineItem{},
		},
	}

	stock, err := services.NewStockValidator(f.catalog)
	if err != nil {
		t.Fatalf("NewStockValidator: %v", err)
	}
	couponSvc, err := services.NewCouponService(services.CouponServiceDeps{
		Coupons: f.coupons,
		StoreID: "store-1",
		Clock:   func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewCouponService: %v", err)
	}
	giftSvc, err := services.NewGiftCardService(f.giftCards)
	if err != nil {
		t.Fatalf("NewGiftCardService: %v", err)
	}
	checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Stock:      stock,
		Coupons:    couponSvc,
		GiftCards:  giftSvc,
		Addresses:  stubAddresses{},
		Provider:   f.provider,
		StoreID:    "store-1",
		SuccessURL: "https://shop.example.com/success",
		CancelURL:  "https://shop.example.com/cancel",
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}
	fulfillmentSvc, err := services.NewFulfillmentService(services.FulfillmentServiceDeps{
		Orders:            f.orders,
		Catalog:           f.catalog,
		GiftCards:         f.giftCards,
		Provider:          f.provider,
		Mailer:            notifications.NopMailer{},
		StoreID:           "store-1",
		StoreName:         "Test Store",
		LowStockThreshold: 5,
	})
	if err != nil {
		t.Fatalf("NewFulfillmentService: %v", err)
	}

	checkoutHandlers, err := NewCheckoutHandlers(checkoutSvc, fulfillmentSvc)
	if err != nil {
		t.Fatalf("NewCheckoutHandlers: %v", err)
	}
	couponHandlers, err := NewCouponHandlers(couponSvc)
	if err != nil {
		t.Fatalf("NewCouponHandlers: %v", err)
	}
	webhookHandlers, err := NewWebhookHandlers(fulfillmentSvc)
	if err != nil {
		t.Fatalf("NewWebhookHandlers: %v", err)
	}

	f.router = NewRouter(
		WithCheckoutRoutes(checkoutHandlers.Routes),
		WithCouponRoutes(couponHandlers.Routes),
		WithWebhookRoutes(webhookHandlers.Routes),
	)
	return f
}
