package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/till/internal/customer"
	"github.com/roach88/till/internal/ledger"
	"github.com/roach88/till/internal/pricing"
)

// QuoteRequest is the cart as the UI holds it.
type QuoteRequest struct {
	Items []ledger.CartItem `json:"items"`

	// CustomerID is resolved through the customer directory. Empty means an
	// anonymous sale.
	CustomerID string `json:"customer_id,omitempty"`

	ManualDiscount *ledger.Discount `json:"manual_discount,omitempty"`

	// At is the RFC 3339 time of sale. Empty means now.
	At string `json:"at,omitempty"`
}

// QuoteResponse is a quote plus the totals formatted for display.
type QuoteResponse struct {
	ledger.Quote
	Display map[string]string `json:"display,omitempty"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return
	}

	at := time.Now()
	if req.At != "" {
		parsed, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("at: %v", err))
			return
		}
		at = parsed
	}
	opts := []ledger.Option{ledger.AtTime(at)}
	if req.ManualDiscount != nil {
		opts = append(opts, ledger.WithManualDiscount(*req.ManualDiscount))
	}

	cust, err := customer.Resolve(r.Context(), s.customers, req.CustomerID)
	switch {
	case errors.Is(err, customer.ErrNotFound):
		writeError(w, http.StatusUnprocessableEntity, "UNKNOWN_CUSTOMER", fmt.Sprintf("customer %q not found", req.CustomerID))
		return
	case err != nil:
		s.internalError(w, "customer lookup failed", err)
		return
	case cust != nil:
		opts = append(opts, ledger.ForCustomer(*cust))
	}

	cart, err := ledger.NewCart(req.Items, opts...)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_CART", err.Error())
		return
	}

	quote, err := ledger.NewQuote(cart, s.catalog, s.quoteOpts)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_CART", err.Error())
		return
	}
	s.metrics.ObserveQuote(string(quote.Status), int64(quote.Totals.Total), quote.Diagnostics)
	s.logDiagnostics(quote.Diagnostics)

	writeJSON(w, http.StatusOK, QuoteResponse{Quote: quote, Display: s.display(quote.Totals)})
}

func (s *Server) display(t ledger.Totals) map[string]string {
	if s.formatter == nil {
		return nil
	}
	return map[string]string{
		"subtotal":       s.formatter.Format(t.Subtotal),
		"total_discount": s.formatter.Format(t.TotalDiscount),
		"tax":            s.formatter.Format(t.Tax),
		"delivery_fee":   s.formatter.Format(t.DeliveryFee),
		"total":          s.formatter.Format(t.Total),
	}
}

func (s *Server) logDiagnostics(diags []pricing.Diagnostic) {
	for _, d := range diags {
		s.logger.Warn("pricing rule skipped",
			zap.String("rule_id", d.RuleID),
			zap.String("code", string(d.Code)),
			zap.String("reason", d.Message),
		)
	}
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "INTERNAL", msg)
}
