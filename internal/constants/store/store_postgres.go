package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"carbonregistry/internal/constants/models"
	id "carbonregistry/pkg/domain"
	"carbonregistry/pkg/platform/sentinel"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresStore persists versions in constants_versions. The primary key on
// (domain, version) is what serialises concurrent updates.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed constants store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectVersion = `SELECT domain, version, payload, created_by, created_at FROM constants_versions`

func (s *PostgresStore) Latest(ctx context.Context, domain id.SubDomain) (*models.Version, error) {
	row := s.db.QueryRowContext(ctx, selectVersion+` WHERE domain = $1 ORDER BY version DESC LIMIT 1`, string(domain))
	v, err := scanVersion(row)
	if err != nil {
		return nil, fmt.Errorf("find latest constants for %s: %w", domain, err)
	}
	return v, nil
}

func (s *PostgresStore) Get(ctx context.Context, domain id.SubDomain, number int) (*models.Version, error) {
	row := s.db.QueryRowContext(ctx, selectVersion+` WHERE domain = $1 AND version = $2`, string(domain), number)
	v, err := scanVersion(row)
	if err != nil {
		return nil, fmt.Errorf("find constants %s v%d: %w", domain, number, err)
	}
	return v, nil
}

func (s *PostgresStore) List(ctx context.Context, domain id.SubDomain) ([]*models.Version, error) {
	rows, err := s.db.QueryContext(ctx, selectVersion+` WHERE domain = $1 ORDER BY version ASC`, string(domain))
	if err != nil {
		return nil, fmt.Errorf("list constants for %s: %w: %w", domain, sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []*models.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("list constants for %s: %w", domain, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list constants for %s: %w: %w", domain, sentinel.ErrUnavailable, err)
	}
	return out, nil
}

func (s *PostgresStore) Insert(ctx context.Context, v *models.Version) error {
	query := `
		INSERT INTO constants_versions (domain, version, payload, created_by, created_at)
		SELECT $1, $2, $3, $4, $5
		WHERE $2 = COALESCE((SELECT MAX(version) FROM constants_versions WHERE domain = $1), 0) + 1
	`
	res, err := s.db.ExecContext(ctx, query, string(v.Domain), v.Number, []byte(v.Payload), v.CreatedBy, v.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert constants %s v%d: %w: %w", v.Domain, v.Number, sentinel.ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert constants %s v%d: %w: %w", v.Domain, v.Number, sentinel.ErrUnavailable, err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(row scanner) (*models.Version, error) {
	var (
		v       models.Version
		domain  string
		payload []byte
	)
	if err := row.Scan(&domain, &v.Number, &payload, &v.CreatedBy, &v.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	v.Domain = id.SubDomain(domain)
	v.Payload = payload
	return &v, nil
}
