package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/till/internal/inventory"
)

// MemoryInventory is an in-memory inventory.Repository. It does not
// implement inventory.BatchCommitter, so the allocator commits unit by unit.
type MemoryInventory struct {
	mu    sync.Mutex
	units map[string]inventory.Unit

	// BeforeCommit, when set, runs before each conditional update with the
	// lock released. Tests use it to change a unit concurrently.
	BeforeCommit func(unitID string)

	// FailCommit, when set, makes CommitReservation return its error.
	FailCommit func(unitID string) error

	commits int
}

// NewMemoryInventory returns a store holding units.
func NewMemoryInventory(units ...inventory.Unit) *MemoryInventory {
	m := &MemoryInventory{units: make(map[string]inventory.Unit, len(units))}
	for _, u := range units {
		m.units[strings.ToLower(u.ID)] = u
	}
	return m
}

// PutUnits inserts or replaces units.
func (m *MemoryInventory) PutUnits(_ context.Context, units []inventory.Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range units {
		m.units[strings.ToLower(u.ID)] = u
	}
	return nil
}

// ListUnits returns matching units ordered by id.
func (m *MemoryInventory) ListUnits(_ context.Context, f inventory.ListFilter) ([]inventory.Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []inventory.Unit
	for _, u := range m.units {
		if f.Match(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Unit returns one unit by id.
func (m *MemoryInventory) Unit(_ context.Context, id string) (inventory.Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return inventory.Unit{}, fmt.Errorf("%w: %s", inventory.ErrUnitNotFound, id)
	}
	return u, nil
}

// QueryAvailableUnits returns available units of a product variant ordered by id.
func (m *MemoryInventory) QueryAvailableUnits(ctx context.Context, productID, variantID string) ([]inventory.Unit, error) {
	return m.ListUnits(ctx, inventory.ListFilter{ProductID: productID, VariantID: variantID, Status: inventory.StatusAvailable})
}

// CommitReservation is a compare-and-set on the unit status.
func (m *MemoryInventory) CommitReservation(_ context.Context, unitID string, expected, target inventory.UnitStatus) (bool, error) {
	if m.BeforeCommit != nil {
		m.BeforeCommit(unitID)
	}
	if m.FailCommit != nil {
		if err := m.FailCommit(unitID); err != nil {
			return false, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++
	key := strings.ToLower(unitID)
	u, ok := m.units[key]
	if !ok || u.Status != expected {
		return false, nil
	}
	u.Status = target
	m.units[key] = u
	return true, nil
}

// SetStatus forces a unit's status, bypassing the compare-and-set.
func (m *MemoryInventory) SetStatus(unitID string, status inventory.UnitStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(unitID)
	u := m.units[key]
	u.Status = status
	m.units[key] = u
}

// Status returns a unit's current status, or "" if unknown.
func (m *MemoryInventory) Status(unitID string) inventory.UnitStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.units[strings.ToLower(unitID)].Status
}

// Commits returns how many conditional updates were attempted.
func (m *MemoryInventory) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// Units builds n available units "<prefix>-1".."<prefix>-n" for a product.
func Units(prefix, productID, variantID string, n int) []inventory.Unit {
	out := make([]inventory.Unit, n)
	for i := range out {
		out[i] = inventory.Unit{
			ID:        fmt.Sprintf("%s-%d", prefix, i+1),
			Kind:      inventory.KindSerial,
			ProductID: productID,
			VariantID: variantID,
			Status:    inventory.StatusAvailable,
		}
	}
	return out
}

func fmtID(prefix string, n int) string {
	return fmt.Sprintf("%s-%04d", prefix, n)
}
