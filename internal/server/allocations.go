package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/roach88/till/internal/inventory"
)

// AllocateRequest asks for quantity units of a product variant. Picks are
// the identifiers the operator scanned; without picks the first available
// units are taken.
type AllocateRequest struct {
	ProductID string   `json:"product_id"`
	VariantID string   `json:"variant_id,omitempty"`
	Quantity  int      `json:"quantity"`
	Picks     []string `json:"picks,omitempty"`

	// Stage is reserve (default) or sell.
	Stage string `json:"stage,omitempty"`
}

// TransitionRequest finalizes or releases reserved units.
type TransitionRequest struct {
	ProductID string   `json:"product_id"`
	VariantID string   `json:"variant_id,omitempty"`
	UnitIDs   []string `json:"unit_ids"`
}

// UnitsResponse lists units.
type UnitsResponse struct {
	Units []inventory.Unit `json:"units"`
}

func (s *Server) handleListUnits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := inventory.ListFilter{
		ProductID: q.Get("product_id"),
		VariantID: q.Get("variant_id"),
	}
	if status := q.Get("status"); status != "" {
		st, err := inventory.ParseUnitStatus(status)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
		f.Status = st
	}

	units, err := s.inv.ListUnits(r.Context(), f)
	if err != nil {
		s.internalError(w, "list units failed", err)
		return
	}
	if units == nil {
		units = []inventory.Unit{}
	}
	writeJSON(w, http.StatusOK, UnitsResponse{Units: units})
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req AllocateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.ProductID == "" || req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "product_id and a positive quantity are required")
		return
	}
	stage := inventory.StageReserve
	if req.Stage != "" {
		parsed, err := inventory.ParseStage(req.Stage)
		if err != nil || (parsed != inventory.StageReserve && parsed != inventory.StageSell) {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("stage must be %s or %s", inventory.StageReserve, inventory.StageSell))
			return
		}
		stage = parsed
	}

	line := inventory.LineItem{ProductID: req.ProductID, VariantID: req.VariantID}
	candidates, err := s.alloc.Candidates(r.Context(), line)
	if err != nil {
		s.internalError(w, "query candidates failed", err)
		return
	}
	alloc, err := s.alloc.Allocate(r.Context(), line, req.Quantity, candidates, req.Picks, stage)
	if err != nil {
		s.allocationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, alloc)
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.alloc.Finalize)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.alloc.Release)
}

type transitionFunc func(ctx context.Context, line inventory.LineItem, unitIDs []string) (inventory.Allocation, error)

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	var req TransitionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "product_id is required")
		return
	}

	line := inventory.LineItem{ProductID: req.ProductID, VariantID: req.VariantID}
	alloc, err := fn(r.Context(), line, req.UnitIDs)
	if err != nil {
		s.allocationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alloc)
}

// allocationError maps allocator failures: a stale unit is a conflict the
// client resolves by selecting again, other typed failures are unprocessable.
func (s *Server) allocationError(w http.ResponseWriter, err error) {
	var allocErr *inventory.AllocationError
	if !errors.As(err, &allocErr) {
		s.internalError(w, "allocation failed", err)
		return
	}
	status := http.StatusUnprocessableEntity
	if allocErr.Code == inventory.CodeStaleUnit {
		status = http.StatusConflict
	}
	writeJSON(w, status, errorBody{Error: apiError{
		Code:    string(allocErr.Code),
		Message: allocErr.Message,
		UnitIDs: allocErr.UnitIDs,
	}})
}
