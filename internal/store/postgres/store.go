// Package postgres stores licenses in PostgreSQL. The schema is created by
// db.RunMigrations.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EternisAI/silo-license/internal/license"
)

const selectColumns = `id::text, key, product_id, customer_id, issued_at, expires_at, hardware_id, features, active`

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Create(ctx context.Context, l *license.License) error {
	features := l.Features
	if features == nil {
		features = []string{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO licenses (id, key, product_id, customer_id, issued_at, expires_at, hardware_id, features, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.ID, l.Key, l.ProductID, l.CustomerID, l.IssuedAt, l.ExpiresAt, l.HardwareID, features, l.Active)
	if err != nil {
		return fmt.Errorf("insert license: %w", err)
	}
	return nil
}

func (s *Store) FindByKey(ctx context.Context, key string) (*license.License, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM licenses WHERE key = $1 ORDER BY issued_at LIMIT 1`, key)
	return scanLicense(row)
}

func (s *Store) FindByID(ctx context.Context, id string) (*license.License, error) {
	// Compare as text so malformed ids read as "not found" rather than a cast error.
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM licenses WHERE id::text = $1`, id)
	return scanLicense(row)
}

func (s *Store) List(ctx context.Context) ([]license.License, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+selectColumns+` FROM licenses ORDER BY issued_at`)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	defer rows.Close()

	result := []license.License{}
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	return result, nil
}

func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE licenses SET active = $2 WHERE id::text = $1`, id, active)
	if err != nil {
		return fmt.Errorf("update license: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return license.ErrNotFound
	}
	return nil
}

func scanLicense(row pgx.Row) (*license.License, error) {
	var l license.License
	err := row.Scan(&l.ID, &l.Key, &l.ProductID, &l.CustomerID, &l.IssuedAt, &l.ExpiresAt, &l.HardwareID, &l.Features, &l.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, license.ErrNotFound
		}
		return nil, fmt.Errorf("scan license: %w", err)
	}
	l.IssuedAt = l.IssuedAt.UTC()
	l.ExpiresAt = l.ExpiresAt.UTC()
	if l.Features == nil {
		l.Features = []string{}
	}
	return &l, nil
}
