package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shoploft/api/internal/domain"
	"github.com/shoploft/api/internal/repositories"
)

var (
	// ErrGiftCardNotFound indicates no gift card matches the code.
	ErrGiftCardNotFound = errors.New("gift card: invalid code")
	// ErrGiftCardNotRedeemable indicates the card is disabled or has no balance.
	ErrGiftCardNotRedeemable = errors.New("gift card: not redeemable")
	// ErrGiftCardUnavailable indicates the gift card store could not be queried.
	ErrGiftCardUnavailable = errors.New("gift card: store unavailable")
)

// GiftCardErrorMessage renders the user-facing message for a validation failure.
func GiftCardErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrGiftCardNotFound):
		return "Invalid gift card code"
	case errors.Is(err, ErrGiftCardNotRedeemable):
		return "This gift card has no remaining balance"
	default:
		return "Gift card could not be validated"
	}
}

// GiftCardService validates gift cards. Validation never mutates the
// balance; the debit happens at order completion, not at session creation.
type GiftCardService struct {
	cards repositories.GiftCardRepository
}

// NewGiftCardService constructs a GiftCardService.
func NewGiftCardService(cards repositories.GiftCardRepository) (*GiftCardService, error) {
	if cards == nil {
		return nil, errors.New("gift card service: gift card repository is required")
	}
	return &GiftCardService{cards: cards}, nil
}

// Validate checks the code exists and the card is active with a positive
// balance, returning the card so the caller can compute the applicable
// amount against its balance.
func (s *GiftCardService) Validate(ctx context.Context, code string) (domain.GiftCard, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.GiftCard{}, ErrGiftCardNotFound
	}

	card, err := s.cards.FindByCode(ctx, code)
	if err != nil {
		var repoErr *repositories.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.GiftCard{}, ErrGiftCardNotFound
		}
		return domain.GiftCard{}, fmt.Errorf("%w: %v", ErrGiftCardUnavailable, err)
	}

	if !card.Redeemable() {
		return domain.GiftCard{}, ErrGiftCardNotRedeemable
	}
	return card, nil
}
