package counter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"carbonregistry/pkg/platform/sentinel"
)

// bigint overflow in the upsert; the statement fails and the row is unchanged.
const pgNumericOutOfRange = "22003"

// PostgresStore persists counters in the counters table. The increment is a
// single upsert statement, so the row lock serialises concurrent allocations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed counter store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Allocate(ctx context.Context, name Name, count int64) (int64, error) {
	if err := validate(name, count); err != nil {
		return 0, err
	}

	if count == 0 {
		var value int64
		err := s.db.QueryRowContext(ctx, `SELECT value FROM counters WHERE name = $1`, string(name)).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("read counter %s: %w: %w", name, sentinel.ErrUnavailable, err)
		}
		return value, nil
	}

	query := `
		INSERT INTO counters (name, value)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET
			value = counters.value + EXCLUDED.value
		RETURNING value
	`
	var value int64
	if err := s.db.QueryRowContext(ctx, query, string(name), count).Scan(&value); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgNumericOutOfRange {
			return 0, overflowErr(name, count)
		}
		return 0, fmt.Errorf("increment counter %s: %w: %w", name, sentinel.ErrUnavailable, err)
	}
	return value - count, nil
}
