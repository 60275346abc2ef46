package inventory

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes allocation failures.
type ErrorCode string

const (
	// CodeInsufficientCandidates indicates fewer candidates than requested units.
	CodeInsufficientCandidates ErrorCode = "INSUFFICIENT_CANDIDATES"

	// CodeCountMismatch indicates a confirm with the wrong number of picked units.
	CodeCountMismatch ErrorCode = "COUNT_MISMATCH"

	// CodeStaleUnit indicates a unit left the expected status between query and commit.
	CodeStaleUnit ErrorCode = "STALE_UNIT"

	// CodeInvalidCandidate indicates a candidate that is not available or
	// belongs to another product variant.
	CodeInvalidCandidate ErrorCode = "INVALID_CANDIDATE"

	// CodeUnknownUnit indicates a pick of an identifier not among the candidates.
	CodeUnknownUnit ErrorCode = "UNKNOWN_UNIT"
)

// AllocationError is a typed allocation failure. Each one requires a new
// selection attempt; the allocator never retries with different units.
type AllocationError struct {
	Code      ErrorCode
	Message   string
	Line      LineItem
	Requested int
	Selected  int

	// UnitIDs lists the units the failure is about.
	UnitIDs []string
}

func (e *AllocationError) Error() string {
	if e.Line.ProductID != "" {
		return fmt.Sprintf("%s: %s (line=%s)", e.Code, e.Message, e.Line)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the code of an *AllocationError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ae *AllocationError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsStaleUnit reports whether err is a stale unit conflict.
func IsStaleUnit(err error) bool {
	return CodeOf(err) == CodeStaleUnit
}

// IsCountMismatch reports whether err is a count mismatch.
func IsCountMismatch(err error) bool {
	return CodeOf(err) == CodeCountMismatch
}

// IsInsufficientCandidates reports whether err is a shortage of candidates.
func IsInsufficientCandidates(err error) bool {
	return CodeOf(err) == CodeInsufficientCandidates
}
