package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/till/internal/inventory"
)

// ErrUnitNotFound is returned by Unit for an unknown id.
var ErrUnitNotFound = inventory.ErrUnitNotFound

func idKey(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func (s *Store) upsertUnitSQL() string {
	if s.dialect == MySQL {
		return `
			INSERT INTO inventory_units (id_key, id, kind, product_id, variant_id, status, version)
			VALUES (?, ?, ?, ?, ?, ?, 1)
			ON DUPLICATE KEY UPDATE
				id = VALUES(id), kind = VALUES(kind), product_id = VALUES(product_id),
				variant_id = VALUES(variant_id), status = VALUES(status), version = version + 1
		`
	}
	return `
		INSERT INTO inventory_units (id_key, id, kind, product_id, variant_id, status, version)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(id_key) DO UPDATE SET
			id = excluded.id, kind = excluded.kind, product_id = excluded.product_id,
			variant_id = excluded.variant_id, status = excluded.status,
			version = inventory_units.version + 1
	`
}

// PutUnits inserts or replaces units in one transaction.
func (s *Store) PutUnits(ctx context.Context, units []inventory.Unit) error {
	for _, u := range units {
		if idKey(u.ID) == "" || u.ProductID == "" {
			return fmt.Errorf("put units: unit %q needs an id and a product id", u.ID)
		}
		if !u.Status.Valid() {
			return fmt.Errorf("put units: unit %s has unknown status %q", u.ID, u.Status)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put units: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(s.upsertUnitSQL()))
	if err != nil {
		return fmt.Errorf("put units: prepare: %w", err)
	}
	defer stmt.Close()

	for _, u := range units {
		kind := u.Kind
		if kind == "" {
			kind = inventory.KindSerial
		}
		if _, err := stmt.ExecContext(ctx, idKey(u.ID), strings.TrimSpace(u.ID), string(kind), u.ProductID, u.VariantID, string(u.Status)); err != nil {
			return fmt.Errorf("put unit %s: %w", u.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put units: commit: %w", err)
	}
	return nil
}

const unitColumns = `id, kind, product_id, variant_id, status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (inventory.Unit, error) {
	var u inventory.Unit
	var kind, status string
	if err := row.Scan(&u.ID, &kind, &u.ProductID, &u.VariantID, &status); err != nil {
		return inventory.Unit{}, err
	}
	u.Kind = inventory.IdentifierKind(kind)
	u.Status = inventory.UnitStatus(status)
	return u, nil
}

// Unit returns one unit by id.
func (s *Store) Unit(ctx context.Context, id string) (inventory.Unit, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+unitColumns+` FROM inventory_units WHERE id_key = ?`), idKey(id))
	u, err := scanUnit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return inventory.Unit{}, fmt.Errorf("%w: %s", ErrUnitNotFound, id)
	}
	if err != nil {
		return inventory.Unit{}, fmt.Errorf("read unit %s: %w", id, err)
	}
	return u, nil
}

// ListUnits returns units matching f ordered by id_key. It returns an empty
// slice, not nil, when nothing matches.
func (s *Store) ListUnits(ctx context.Context, f inventory.ListFilter) ([]inventory.Unit, error) {
	var where []string
	var args []any
	if f.ProductID != "" {
		where = append(where, "product_id = ?")
		args = append(args, f.ProductID)
	}
	if f.VariantID != "" {
		where = append(where, "variant_id = ?")
		args = append(args, f.VariantID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	q := `SELECT ` + unitColumns + ` FROM inventory_units`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY id_key ASC`

	return s.queryUnits(ctx, q, args...)
}

// QueryAvailableUnits returns the available units of one product variant.
func (s *Store) QueryAvailableUnits(ctx context.Context, productID, variantID string) ([]inventory.Unit, error) {
	return s.queryUnits(ctx, `
		SELECT `+unitColumns+`
		FROM inventory_units
		WHERE product_id = ? AND variant_id = ? AND status = ?
		ORDER BY id_key ASC
	`, productID, variantID, string(inventory.StatusAvailable))
}

func (s *Store) queryUnits(ctx context.Context, q string, args ...any) ([]inventory.Unit, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	units := []inventory.Unit{}
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}
	return units, nil
}

const commitSQL = `
	UPDATE inventory_units
	SET status = ?, version = version + 1
	WHERE id_key = ? AND status = ?
`

// CommitReservation moves one unit from expected to target if it is still
// expected. A false result with a nil error is a conflict.
func (s *Store) CommitReservation(ctx context.Context, unitID string, expected, target inventory.UnitStatus) (bool, error) {
	res, err := s.exec(ctx, commitSQL, string(target), idKey(unitID), string(expected))
	if err != nil {
		return false, fmt.Errorf("commit unit %s: %w", unitID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("commit unit %s: %w", unitID, err)
	}
	return n == 1, nil
}

// CommitBatch moves every unit from expected to target in one transaction,
// or none of them. It returns the ids that were not in the expected status.
func (s *Store) CommitBatch(ctx context.Context, unitIDs []string, expected, target inventory.UnitStatus) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(commitSQL))
	if err != nil {
		return nil, fmt.Errorf("commit batch: prepare: %w", err)
	}
	defer stmt.Close()

	var conflicts []string
	for _, id := range unitIDs {
		res, err := stmt.ExecContext(ctx, string(target), idKey(id), string(expected))
		if err != nil {
			return nil, fmt.Errorf("commit unit %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("commit unit %s: %w", id, err)
		}
		if n != 1 {
			conflicts = append(conflicts, id)
		}
	}
	if len(conflicts) > 0 {
		return conflicts, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return nil, nil
}

var (
	_ inventory.Repository     = (*Store)(nil)
	_ inventory.BatchCommitter = (*Store)(nil)
)
