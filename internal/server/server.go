// Package server is the HTTP adapter the cart UI talks to. It prices carts
// and runs serialized unit allocations against the configured stores.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/roach88/till/internal/customer"
	"github.com/roach88/till/internal/inventory"
	"github.com/roach88/till/internal/ledger"
	"github.com/roach88/till/internal/metrics"
	"github.com/roach88/till/internal/money"
	"github.com/roach88/till/internal/pricing"
)

// Config wires the server to its collaborators. Inventory and Catalog are
// required; the rest may be nil.
type Config struct {
	Catalog   pricing.Catalog
	Quote     ledger.QuoteOptions
	Inventory inventory.Repository
	Customers customer.Directory
	Allocator *inventory.Allocator
	Formatter *money.Formatter
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
}

// Server routes the v1 API.
type Server struct {
	catalog   pricing.Catalog
	quoteOpts ledger.QuoteOptions
	inv       inventory.Repository
	customers customer.Directory
	alloc     *inventory.Allocator
	formatter *money.Formatter
	metrics   *metrics.Metrics
	logger    *zap.Logger
	mux       *http.ServeMux
}

// New builds a server. Without an explicit allocator one is created over
// the inventory, reporting to Metrics.
func New(cfg Config) *Server {
	s := &Server{
		catalog:   cfg.Catalog,
		quoteOpts: cfg.Quote,
		inv:       cfg.Inventory,
		customers: cfg.Customers,
		alloc:     cfg.Allocator,
		formatter: cfg.Formatter,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		mux:       http.NewServeMux(),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.alloc == nil {
		opts := []inventory.AllocatorOption{inventory.WithLogger(s.logger)}
		if s.metrics != nil {
			opts = append(opts, inventory.WithRecorder(s.metrics))
		}
		s.alloc = inventory.NewAllocator(s.inv, opts...)
	}

	s.mux.HandleFunc("POST /v1/quote", s.handleQuote)
	s.mux.HandleFunc("GET /v1/units", s.handleListUnits)
	s.mux.HandleFunc("POST /v1/allocations", s.handleAllocate)
	s.mux.HandleFunc("POST /v1/allocations/finalize", s.handleFinalize)
	s.mux.HandleFunc("POST /v1/allocations/release", s.handleRelease)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if cfg.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

// ServeHTTP logs and dispatches a request.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.logger.Debug("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.Duration("duration", time.Since(start)),
	)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	UnitIDs []string `json:"unit_ids,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: apiError{Code: code, Message: message}})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
