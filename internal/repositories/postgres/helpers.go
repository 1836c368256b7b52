package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"

	"github.com/shoploft/api/internal/domain"
	"github.com/shoploft/api/internal/repositories"
)

// Postgres error code for unique constraint violations.
const uniqueViolation = "23505"

func mapRowError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repositories.NewError(op, repositories.ErrorCodeNotFound, "row not found", err)
	}
	return repositories.NewError(op, repositories.ErrorCodeUnavailable, err.Error(), err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}

func decodeOptions(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	opts := map[string]string{}
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, err
	}
	return opts, nil
}

func encodeJSON(v any) []byte {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// encodeVariantInfo keeps the parameter typed so a nil pointer stays SQL
// NULL instead of marshalling to the JSON literal null.
func encodeVariantInfo(v *domain.VariantInfo) []byte {
	if v == nil {
		return nil
	}
	return encodeJSON(v)
}
