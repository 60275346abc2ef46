package inventory

import (
	"fmt"
	"strings"
)

// UnitStatus is the lifecycle state of one tracked unit.
type UnitStatus string

const (
	StatusAvailable UnitStatus = "available"
	StatusReserved  UnitStatus = "reserved"
	StatusSold      UnitStatus = "sold"
	StatusDamaged   UnitStatus = "damaged"
	StatusReturned  UnitStatus = "returned"
	StatusRepair    UnitStatus = "repair"
	StatusWarranty  UnitStatus = "warranty"
)

var transitions = map[UnitStatus][]UnitStatus{
	StatusAvailable: {StatusReserved, StatusSold, StatusDamaged, StatusRepair},
	StatusReserved:  {StatusAvailable, StatusSold},
	StatusSold:      {StatusReturned, StatusWarranty},
	StatusReturned:  {StatusAvailable, StatusDamaged, StatusRepair},
	StatusRepair:    {StatusAvailable, StatusDamaged},
	StatusWarranty:  {StatusRepair, StatusReturned},
	StatusDamaged:   {StatusRepair},
}

// Valid reports whether s is a known status.
func (s UnitStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether a unit may move from one status to another.
func CanTransition(from, to UnitStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseUnitStatus converts a stored or user-supplied status.
func ParseUnitStatus(s string) (UnitStatus, error) {
	st := UnitStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown unit status %q", s)
	}
	return st, nil
}

// IdentifierKind says what a unit identifier is.
type IdentifierKind string

const (
	KindSerial  IdentifierKind = "serial"
	KindIMEI    IdentifierKind = "imei"
	KindMAC     IdentifierKind = "mac"
	KindBarcode IdentifierKind = "barcode"
)

// ParseIdentifierKind converts a kind name. Empty means serial.
func ParseIdentifierKind(s string) (IdentifierKind, error) {
	k := IdentifierKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case "":
		return KindSerial, nil
	case KindSerial, KindIMEI, KindMAC, KindBarcode:
		return k, nil
	}
	return "", fmt.Errorf("unknown identifier kind %q", s)
}

// Unit is one individually tracked item.
type Unit struct {
	ID        string         `json:"id" yaml:"id"`
	Kind      IdentifierKind `json:"kind" yaml:"kind"`
	ProductID string         `json:"product_id" yaml:"product_id"`
	VariantID string         `json:"variant_id,omitempty" yaml:"variant_id"`
	Status    UnitStatus     `json:"status" yaml:"status"`
}

// LineItem identifies the product variant a serialized cart line sells.
type LineItem struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
}

func (l LineItem) String() string {
	if l.VariantID == "" {
		return l.ProductID
	}
	return l.ProductID + "/" + l.VariantID
}

// Matches reports whether u belongs to the line's product and variant.
func (l LineItem) Matches(u Unit) bool {
	return u.ProductID == l.ProductID && u.VariantID == l.VariantID
}

// normalizeID is the lookup key for operator-typed identifiers. Identifiers
// of every kind are case-insensitive; stores key units the same way.
func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
