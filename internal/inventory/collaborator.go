package inventory

import (
	"context"
	"errors"
)

// ErrUnitNotFound is returned by UnitReader.Unit for an unknown id.
var ErrUnitNotFound = errors.New("unit not found")

// Collaborator is the inventory storage the allocator reads from and commits to.
type Collaborator interface {
	// QueryAvailableUnits returns a snapshot of available units for a product
	// variant. The snapshot may already be stale when it is returned.
	QueryAvailableUnits(ctx context.Context, productID, variantID string) ([]Unit, error)

	// CommitReservation sets the unit's status to target only if it is still
	// expected. It returns false, with a nil error, on a conflict.
	CommitReservation(ctx context.Context, unitID string, expected, target UnitStatus) (bool, error)
}

// BatchCommitter is implemented by stores that can move several units in
// one atomic step. CommitBatch either moves every unit or none, and reports
// the ids that were not in the expected status.
type BatchCommitter interface {
	CommitBatch(ctx context.Context, unitIDs []string, expected, target UnitStatus) (conflicts []string, err error)
}

// UnitReader reads one unit by id, in any status. Finalize and Release need
// it to check that the units belong to the line.
type UnitReader interface {
	Unit(ctx context.Context, id string) (Unit, error)
}

// ListFilter narrows ListUnits. Empty fields match everything.
type ListFilter struct {
	ProductID string
	VariantID string
	Status    UnitStatus
}

// Match reports whether u passes the filter.
func (f ListFilter) Match(u Unit) bool {
	if f.ProductID != "" && u.ProductID != f.ProductID {
		return false
	}
	if f.VariantID != "" && u.VariantID != f.VariantID {
		return false
	}
	if f.Status != "" && u.Status != f.Status {
		return false
	}
	return true
}

// Repository is a Collaborator that can also be loaded and listed.
type Repository interface {
	Collaborator
	UnitReader
	PutUnits(ctx context.Context, units []Unit) error
	ListUnits(ctx context.Context, filter ListFilter) ([]Unit, error)
}
