package inventory

import (
	"fmt"
	"strings"
)

// Selection is the pick step of an allocation: a fixed candidate set, a
// requested count and the units picked so far. It is caller-driven and not
// safe for concurrent use.
type Selection struct {
	line       LineItem
	requested  int
	candidates []Unit
	index      map[string]int
	picked     []int
	isPicked   map[int]bool
}

// NewSelection validates candidates for line and returns an empty selection.
// Every candidate must be available and belong to the line; a candidate
// listed twice is kept once.
func NewSelection(line LineItem, requested int, candidates []Unit) (*Selection, error) {
	if requested < 1 {
		return nil, &AllocationError{
			Code:      CodeCountMismatch,
			Message:   fmt.Sprintf("requested quantity must be at least 1, got %d", requested),
			Line:      line,
			Requested: requested,
		}
	}

	s := &Selection{
		line:      line,
		requested: requested,
		index:     make(map[string]int, len(candidates)),
		isPicked:  make(map[int]bool, requested),
	}
	for _, u := range candidates {
		key := normalizeID(u.ID)
		if key == "" {
			return nil, &AllocationError{Code: CodeInvalidCandidate, Message: "candidate without identifier", Line: line}
		}
		if idx, dup := s.index[key]; dup {
			if prev := s.candidates[idx].ID; strings.TrimSpace(prev) != strings.TrimSpace(u.ID) {
				return nil, &AllocationError{
					Code:    CodeInvalidCandidate,
					Message: fmt.Sprintf("units %s and %s differ only by case", prev, u.ID),
					Line:    line,
					UnitIDs: []string{prev, u.ID},
				}
			}
			continue
		}
		if !line.Matches(u) {
			return nil, &AllocationError{
				Code:    CodeInvalidCandidate,
				Message: fmt.Sprintf("unit %s belongs to %s/%s", u.ID, u.ProductID, u.VariantID),
				Line:    line,
				UnitIDs: []string{u.ID},
			}
		}
		if u.Status != StatusAvailable {
			return nil, &AllocationError{
				Code:    CodeInvalidCandidate,
				Message: fmt.Sprintf("unit %s is %s, not available", u.ID, u.Status),
				Line:    line,
				UnitIDs: []string{u.ID},
			}
		}
		s.index[key] = len(s.candidates)
		s.candidates = append(s.candidates, u)
	}

	if len(s.candidates) < requested {
		return nil, &AllocationError{
			Code:      CodeInsufficientCandidates,
			Message:   fmt.Sprintf("%d units requested, %d available", requested, len(s.candidates)),
			Line:      line,
			Requested: requested,
			Selected:  len(s.candidates),
		}
	}
	return s, nil
}

// Line returns the line being allocated.
func (s *Selection) Line() LineItem { return s.line }

// Requested returns the number of units to select.
func (s *Selection) Requested() int { return s.requested }

// Candidates returns a copy of the candidate units.
func (s *Selection) Candidates() []Unit {
	return append([]Unit(nil), s.candidates...)
}

// Pick adds the unit with the given identifier. Identifiers are matched
// case-insensitively after trimming. Picking an already picked unit is a
// no-op.
func (s *Selection) Pick(id string) error {
	idx, ok := s.index[normalizeID(id)]
	if !ok {
		return &AllocationError{
			Code:      CodeUnknownUnit,
			Message:   fmt.Sprintf("unit %q is not a candidate", id),
			Line:      s.line,
			Requested: s.requested,
			Selected:  len(s.picked),
			UnitIDs:   []string{id},
		}
	}
	if s.isPicked[idx] {
		return nil
	}
	if len(s.picked) == s.requested {
		return &AllocationError{
			Code:      CodeCountMismatch,
			Message:   fmt.Sprintf("already picked %d of %d units", len(s.picked), s.requested),
			Line:      s.line,
			Requested: s.requested,
			Selected:  len(s.picked) + 1,
			UnitIDs:   []string{s.candidates[idx].ID},
		}
	}
	s.isPicked[idx] = true
	s.picked = append(s.picked, idx)
	return nil
}

// Unpick removes a picked unit and reports whether it was picked.
func (s *Selection) Unpick(id string) bool {
	idx, ok := s.index[normalizeID(id)]
	if !ok || !s.isPicked[idx] {
		return false
	}
	delete(s.isPicked, idx)
	for i, p := range s.picked {
		if p == idx {
			s.picked = append(s.picked[:i], s.picked[i+1:]...)
			break
		}
	}
	return true
}

// PickFirst fills the remaining slots with unpicked candidates in order.
func (s *Selection) PickFirst() {
	for idx := range s.candidates {
		if len(s.picked) == s.requested {
			return
		}
		if !s.isPicked[idx] {
			s.isPicked[idx] = true
			s.picked = append(s.picked, idx)
		}
	}
}

// Picked returns the picked units in pick order.
func (s *Selection) Picked() []Unit {
	out := make([]Unit, len(s.picked))
	for i, idx := range s.picked {
		out[i] = s.candidates[idx]
	}
	return out
}

// Remaining returns how many more units must be picked.
func (s *Selection) Remaining() int {
	return s.requested - len(s.picked)
}

// Complete reports whether exactly the requested number of units is picked.
func (s *Selection) Complete() bool {
	return len(s.picked) == s.requested
}

// Search returns unpicked candidates whose identifier contains query,
// ignoring case. An empty query returns every unpicked candidate.
func (s *Selection) Search(query string) []Unit {
	q := normalizeID(query)
	var out []Unit
	for idx, u := range s.candidates {
		if s.isPicked[idx] {
			continue
		}
		if q == "" || strings.Contains(normalizeID(u.ID), q) {
			out = append(out, u)
		}
	}
	return out
}
