package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shoploft/api/internal/domain"
	"github.com/shoploft/api/internal/notifications"
	"github.com/shoploft/api/internal/payments"
	"github.com/shoploft/api/internal/repositories"
)

func intPtr(v int) *int { return &v }

type stubCatalog struct {
	mu       sync.Mutex
	products map[string]domain.Product
	variants map[string]domain.Variant

	decrements   []repositories.InventoryDecrement
	decrementErr error
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{
		products: make(map[string]domain.Product),
		variants: make(map[string]domain.Variant),
	}
}

func (s *stubCatalog) GetProduct(_ context.Context, id string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, repositories.NewError("stub.get_product", repositories.ErrorCodeNotFound, "product not found", nil)
	}
	return p, nil
}

func (s *stubCatalog) GetVariant(_ context.Context, id string) (domain.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[id]
	if !ok {
		return domain.Variant{}, repositories.NewError("stub.get_variant", repositories.ErrorCodeNotFound, "variant not found", nil)
	}
	return v, nil
}

func (s *stubCatalog) DecrementInventory(_ context.Context, req repositories.InventoryDecrement) (repositories.InventoryLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decrements = append(s.decrements, req)
	if s.decrementErr != nil {
		return repositories.InventoryLevel{}, s.decrementErr
	}

	if req.VariantID != "" {
		v, ok := s.variants[req.VariantID]
		if !ok || !v.TrackInventory || v.InventoryCount == nil {
			return repositories.InventoryLevel{Tracked: false}, nil
		}
		old := *v.InventoryCount
		next := old - req.Quantity
		if next < 0 {
			next = 0
		}
		v.InventoryCount = intPtr(next)
		s.variants[req.VariantID] = v
		return repositories.InventoryLevel{OldCount: old, NewCount: next, Tracked: true}, nil
	}

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
	mu      sync.Mutex
	coupons map[string]domain.Coupon

	findErr      error
	incremented  []string
	incrementErr error
}

func newStubCoupons() *stubCoupons {
	return &stubCoupons{coupons: make(map[string]domain.Coupon)}
}

func (s *stubCoupons) add(c domain.Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupons[strings.ToLower(c.Code)] = c
}

func (s *stubCoupons) FindByCode(_ context.Context, storeID, code string) (domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return domain.Coupon{}, s.findErr
	}
	c, ok := s.coupons[strings.ToLower(code)]
	if !ok || c.StoreID != storeID {
		return domain.Coupon{}, repositories.NewError("stub.find_coupon", repositories.ErrorCodeNotFound, "coupon not found", nil)
	}
	return c, nil
}

func (s *stubCoupons) IncrementUsage(_ context.Context, couponID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incremented = append(s.incremented, couponID)
	return s.incrementErr
}

type stubGiftCards struct {
	mu    sync.Mutex
	cards map[string]domain.GiftCard

	debits   []int64
	debitErr error
}

func newStubGiftCards() *stubGiftCards {
	return &stubGiftCards{cards: make(map[string]domain.GiftCard)}
}

func (s *stubGiftCards) add(card domain.GiftCard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[card.Code] = card
}

func (s *stubGiftCards) FindByCode(_ context.Context, code string) (domain.GiftCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[code]
	if !ok {
		return domain.GiftCard{}, repositories.NewError("stub.find_gift_card", repositories.ErrorCodeNotFound, "gift card not found", nil)
	}
	return card, nil
}

func (s *stubGiftCards) Debit(_ context.Context, giftCardID string, amountCents int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debitErr != nil {
		return 0, s.debitErr
	}
	for code, card := range s.cards {
		if card.ID != giftCardID {
			continue
		}
		debit := amountCents
		if debit > card.CurrentBalanceCents {
			debit = card.CurrentBalanceCents
		}
		card.CurrentBalanceCents -= debit
		if card.CurrentBalanceCents == 0 {
			card.Status = domain.GiftCardStatusExhausted
		}
		s.cards[code] = card
		s.debits = append(s.debits, debit)
		return card.CurrentBalanceCents, nil
	}
	return 0, repositories.NewError("stub.debit", repositories.ErrorCodeNotFound, "gift card not found", nil)
}

type stubOrders struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	items  map[string][]domain.OrderItem

	createErr error
	creates   int

	// staleLookups makes GetBySessionID miss that many times even when the
	// order exists, simulating a lookup racing an insert on another
	// connection.
	staleLookups int
}

func newStubOrders() *stubOrders {
	return &stubOrders{
		orders: make(map[string]domain.Order),
		items:  make(map[string][]domain.OrderItem),
	}
}

func (s *stubOrders) GetBySessionID(_ context.Context, providerSessionID string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleLookups > 0 {
		s.staleLookups--
		return domain.Order{}, repositories.NewError("stub.get_order", repositories.ErrorCodeNotFound, "order not found", nil)
	}
	order, ok := s.orders[providerSessionID]
	if !ok {
		return domain.Order{}, repositories.NewError("stub.get_order", repositories.ErrorCodeNotFound, "order not found", nil)
	}
	return order, nil
}

func (s *stubOrders) CreateOrder(_ context.Context, order domain.Order, items []domain.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if s.createErr != nil {
		return s.createErr
	}
	if _, exists := s.orders[order.ProviderSessionID]; exists {
		return repositories.NewError("stub.create_order", repositories.ErrorCodeConflict,
			fmt.Sprintf("order for session %s already exists", order.ProviderSessionID), nil)
	}
	s.orders[order.ProviderSessionID] = order
	s.items[order.ID] = items
	return nil
}

type stubAddresses struct {
	addresses map[string]domain.Address
}

func newStubAddresses() *stubAddresses {
	return &stubAddresses{addresses: make(map[string]domain.Address)}
}

func (s *stubAddresses) GetAddress(_ context.Context, id string) (domain.Address, error) {
	address, ok := s.addresses[id]
	if !ok {
		return domain.Address{}, repositories.NewError("stub.get_address", repositories.ErrorCodeNotFound, "address not found", nil)
	}
	return address, nil
}

type stubProvider struct {
	mu sync.Mutex

	createRequests []payments.SessionRequest
	createSession  payments.Session
	createErr      error

	sessions map[string]payments.ConfirmedSession
	getErr   error

	lineItems    map[string][]payments.LineItem
	lineItemsErr error

	parsed   payments.Event
	parseErr error
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		createSession: payments.Session{ID: "cs_test_1", URL: "https://pay.example.com/cs_test_1"},
		sessions:      make(map[string]payments.ConfirmedSession),
		lineItems:     make(map[string][]payments.LineItem),
	}
}

func (s *stubProvider) CreateCheckoutSession(_ context.Context, req payments.SessionRequest) (payments.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createRequests = append(s.createRequests, req)
	if s.createErr != nil {
		return payments.Session{}, s.createErr
	}
	return s.createSession, nil
}

func (s *stubProvider) GetSession(_ context.Context, sessionID string) (payments.ConfirmedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return payments.ConfirmedSession{}, s.getErr
	}
	session, ok := s.sessions[sessionID]
	if !ok {
		return payments.ConfirmedSession{}, errors.New("stub: session not found")
	}
	return session, nil
}

func (s *stubProvider) ListLineItems(_ context.Context, sessionID string) ([]payments.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lineItemsErr != nil {
		return nil, s.lineItemsErr
	}
	return s.lineItems[sessionID], nil
}

func (s *stubProvider) ParseWebhookEvent(_ []byte, _ string) (payments.Event, error) {
	if s.parseErr != nil {
		return nil, s.parseErr
	}
	return s.parsed, nil
}

type stubMailer struct {
	mu sync.Mutex

	confirmations []notifications.OrderConfirmation
	orderAlerts   []notifications.NewOrderAlert
	stockAlerts   []notifications.LowStockAlert

	confirmationErr error
	orderAlertErr   error
	stockAlertErr   error
}

func (s *stubMailer) SendOrderConfirmation(_ context.Context, msg notifications.OrderConfirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmations = append(s.confirmations, msg)
	return s.confirmationErr
}

func (s *stubMailer) SendNewOrderAlert(_ context.Context, msg notifications.NewOrderAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderAlerts = append(s.orderAlerts, msg)
	return s.orderAlertErr
}

func (s *stubMailer) SendLowStockAlert(_ context.Context, msg notifications.LowStockAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stockAlerts = append(s.stockAlerts, msg)
	return s.stockAlertErr
}
