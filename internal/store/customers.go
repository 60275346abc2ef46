package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/till/internal/customer"
	"github.com/roach88/till/internal/pricing"
)

// PutCustomer inserts or replaces a customer's loyalty record.
func (s *Store) PutCustomer(ctx context.Context, c pricing.Customer) error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("put customer: id is required")
	}
	q := `
		INSERT INTO customers (id, points_balance, tier) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET points_balance = excluded.points_balance, tier = excluded.tier
	`
	if s.dialect == MySQL {
		q = `
			INSERT INTO customers (id, points_balance, tier) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE points_balance = VALUES(points_balance), tier = VALUES(tier)
		`
	}
	if _, err := s.exec(ctx, q, strings.TrimSpace(c.ID), c.PointsBalance, c.Tier); err != nil {
		return fmt.Errorf("put customer %s: %w", c.ID, err)
	}
	return nil
}

// Lookup implements customer.Directory.
func (s *Store) Lookup(ctx context.Context, id string) (*pricing.Customer, error) {
	var c pricing.Customer
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, points_balance, tier FROM customers WHERE id = ?`),
		strings.TrimSpace(id),
	).Scan(&c.ID, &c.PointsBalance, &c.Tier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customer.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup customer %s: %w", id, err)
	}
	return &c, nil
}

var _ customer.Directory = (*Store)(nil)
