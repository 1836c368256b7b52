package postgres

import (
	"context"
	"database/sql"

	"github.com/shoploft/api/internal/domain"
	"github.com/shoploft/api/internal/repositories"
)

type giftCardRepository struct {
	db *sql.DB
}

// NewGiftCardRepository constructs the Postgres-backed gift card repository.
func NewGiftCardRepository(db *sql.DB) repositories.GiftCardRepository {
	return &giftCardRepository{db: db}
}

func (r *giftCardRepository) FindByCode(ctx context.Context, code string) (domain.GiftCard, error) {
	const query = `
		SELECT id, code, original_amount_cents, current_balance_cents, status
		FROM gift_cards
		WHERE LOWER(code) = LOWER($1)`

	var g domain.GiftCard
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&g.ID, &g.Code, &g.OriginalAmountCents, &g.CurrentBalanceCents, &g.Status,
	)
	if err != nil {
		return domain.GiftCard{}, mapRowError("giftcard.find", err)
	}
	return g, nil
}

// Debit clamps the debit by the remaining balance and flips the card to
// exhausted when it hits zero, all in one statement.
func (r *giftCardRepository) Debit(ctx context.Context, giftCardID string, amountCents int64) (int64, error) {
	if amountCents <= 0 {
		return 0, repositories.NewError("giftcard.debit", repositories.ErrorCodeUnknown, "amount must be positive", nil)
	}

	const query = `
		UPDATE gift_cards
		SET current_balance_cents = current_balance_cents - LEAST($2, current_balance_cents),
		    status = CASE
		        WHEN current_balance_cents - LEAST($2, current_balance_cents) = 0 THEN 'exhausted'
		        ELSE status
		    END
		WHERE id = $1
		RETURNING current_balance_cents`

	var remaining int64
	err := r.db.QueryRowContext(ctx, query, giftCardID, amountCents).Scan(&remaining)
	if err != nil {
		return 0, mapRowError("giftcard.debit", err)
	}
	return remaining, nil
}
