package postgres

import (
	"context"
	"database/sql"

	"github.com/shoploft/api/internal/domain"
	"github.com/shoploft/api/internal/repositories"
)

type addressRepository struct {
	db *sql.DB
}

// NewAddressRepository constructs the Postgres-backed address repository.
func NewAddressRepository(db *sql.DB) repositories.AddressRepository {
	return &addressRepository{db: db}
}

func (r *addressRepository) GetAddress(ctx context.Context, id string) (domain.Address, error) {
	const query = `
		SELECT id, customer_id, COALESCE(name, ''), line1, COALESCE(line2, ''),
		       city, COALESCE(state, ''), postal_code, country
		FROM customer_addresses
		WHERE id = $1`

	var a domain.Address
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.CustomerID, &a.Name, &a.Line1, &a.Line2,
		&a.City, &a.State, &a.PostalCode, &a.Country,
	)
	if err != nil {
		return domain.Address{}, mapRowError("address.get", err)
	}
	return a, nil
}
