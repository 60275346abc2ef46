package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/till/internal/catalog"
	"github.com/roach88/till/internal/customer"
	"github.com/roach88/till/internal/inventory"
	"github.com/roach88/till/internal/ledger"
	"github.com/roach88/till/internal/metrics"
	"github.com/roach88/till/internal/money"
	"github.com/roach88/till/internal/pricing"
	"github.com/roach88/till/internal/testutil"
)

const testRules = `
rules:
  - id: bulk-2
    category: bulk
    type: fixed
    value: 500
    threshold:
      minUnits: 2
  - id: loyal-10
    category: loyalty
    type: percentage
    value: 10
    threshold:
      minPoints: 100
  - id: broken
    category: special-event
    type: fixed
    value: 100
`

type fixture struct {
	server  *Server
	inv     *testutil.MemoryInventory
	metrics *metrics.Metrics
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	loaded, err := catalog.ParseYAML([]byte(testRules))
	require.NoError(t, err)

	formatter, err := money.NewFormatter("USD", "en")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	core, logs := observer.New(zap.DebugLevel)
	inv := testutil.NewMemoryInventory(testutil.Units("sn", "phone", "black", 3)...)

	s := New(Config{
		Catalog:   loaded.Catalog,
		Quote:     ledger.QuoteOptions{TaxRate: money.MustRate("0.10")},
		Inventory: inv,
		Customers: customer.NewMemory(pricing.Customer{ID: "c-1", PointsBalance: 500, Tier: "gold"}),
		Formatter: formatter,
		Metrics:   m,
		Gatherer:  reg,
		Logger:    zap.New(core),
	})
	return &fixture{server: s, inv: inv, metrics: m, logs: logs}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestQuote_AppliesRulesAndManualDiscount(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/quote", `{
		"items": [{"product_id": "phone", "variant_id": "black", "unit_price": 10000, "quantity": 2, "available": 3}],
		"manual_discount": {"type": "fixed", "value": 1000}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode[QuoteResponse](t, rec)
	assert.Equal(t, money.Amount(20000), resp.Totals.Subtotal)
	assert.Equal(t, money.Amount(500), resp.Totals.AutomaticDiscount)
	assert.Equal(t, money.Amount(1000), resp.Totals.ManualDiscount)
	assert.Equal(t, money.Amount(1850), resp.Totals.Tax)
	assert.Equal(t, money.Amount(20350), resp.Totals.Total)
	assert.Equal(t, ledger.StatusReady, resp.Status)
	assert.Equal(t, []string{"bulk-2"}, resp.AppliedRuleIDs)
	assert.Len(t, resp.Fingerprint, 64)
	assert.True(t, strings.HasPrefix(resp.Display["total"], "USD"))

	require.Len(t, resp.Diagnostics, 1)
	assert.Equal(t, "broken", resp.Diagnostics[0].RuleID)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(f.metrics.Quotes.WithLabelValues("ready")))
	assert.Equal(t, 1, f.logs.FilterMessage("pricing rule skipped").Len())
}

func TestQuote_ResolvesCustomer(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/quote", QuoteRequest{
		Items:      []ledger.CartItem{{ProductID: "phone", UnitPrice: 10000, Quantity: 1, Available: 1}},
		CustomerID: "c-1",
		At:         "2026-05-01T12:00:00Z",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[QuoteResponse](t, rec)
	assert.Equal(t, money.Amount(1000), resp.Totals.AutomaticDiscount)
	assert.Equal(t, []string{"loyal-10"}, resp.AppliedRuleIDs)
}

func TestQuote_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{"items": [`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown field", `{"itemz": []}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"bad discount type", `{"items": [], "manual_discount": {"type": "bogo", "value": 1}}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"bad time", `{"items": [], "at": "noon"}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"zero quantity", `{"items": [{"product_id": "a", "unit_price": 1, "quantity": 0, "available": 1}]}`, http.StatusBadRequest, "INVALID_CART"},
		{"unknown customer", `{"items": [], "customer_id": "nobody"}`, http.StatusUnprocessableEntity, "UNKNOWN_CUSTOMER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, http.MethodPost, "/v1/quote", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[errorBody](t, rec).Error.Code)
		})
	}
}

func TestQuote_EmptyCart(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/quote", `{"items": []}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ledger.StatusEmpty, decode[QuoteResponse](t, rec).Status)
}

func TestListUnits(t *testing.T) {
	f := newFixture(t)
	f.inv.SetStatus("sn-2", inventory.StatusDamaged)

	rec := f.do(t, http.MethodGet, "/v1/units?product_id=phone&status=available", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[UnitsResponse](t, rec)
	require.Len(t, resp.Units, 2)
	assert.Equal(t, "sn-1", resp.Units[0].ID)
	assert.Equal(t, "sn-3", resp.Units[1].ID)

	rec = f.do(t, http.MethodGet, "/v1/units?product_id=tablet", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"units": []}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/v1/units?status=lost", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAllocate_ReserveFinalize(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/allocations", AllocateRequest{
		ProductID: "phone", VariantID: "black", Quantity: 2, Picks: []string{" SN-3 ", "sn-1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	alloc := decode[inventory.Allocation](t, rec)
	assert.Equal(t, inventory.StageReserve, alloc.Stage)
	assert.ElementsMatch(t, []string{"sn-1", "sn-3"}, alloc.UnitIDs())
	assert.NotEmpty(t, alloc.ID)
	assert.Equal(t, inventory.StatusReserved, f.inv.Status("sn-3"))

	rec = f.do(t, http.MethodPost, "/v1/allocations/finalize", TransitionRequest{
		ProductID: "phone", VariantID: "black", UnitIDs: []string{"sn-1", "sn-3"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, inventory.StatusSold, f.inv.Status("sn-1"))
	assert.Equal(t, inventory.StatusSold, f.inv.Status("sn-3"))
	assert.Equal(t, inventory.StatusAvailable, f.inv.Status("sn-2"))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(f.metrics.Allocations.WithLabelValues(inventory.OutcomeCommitted)))
}

func TestAllocate_Release(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/allocations", AllocateRequest{ProductID: "phone", VariantID: "black", Quantity: 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	alloc := decode[inventory.Allocation](t, rec)

	rec = f.do(t, http.MethodPost, "/v1/allocations/release", TransitionRequest{
		ProductID: "phone", VariantID: "black", UnitIDs: alloc.UnitIDs(),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, inventory.StatusAvailable, f.inv.Status(alloc.UnitIDs()[0]))
}

func TestAllocate_StaleUnitIsConflict(t *testing.T) {
	f := newFixture(t)
	f.inv.BeforeCommit = func(unitID string) {
		if unitID == "sn-1" {
			f.inv.SetStatus("sn-1", inventory.StatusSold)
		}
	}

	rec := f.do(t, http.MethodPost, "/v1/allocations", AllocateRequest{
		ProductID: "phone", VariantID: "black", Quantity: 1, Picks: []string{"sn-1"}, Stage: "sell",
	})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	body := decode[errorBody](t, rec)
	assert.Equal(t, string(inventory.CodeStaleUnit), body.Error.Code)
	assert.Equal(t, []string{"sn-1"}, body.Error.UnitIDs)
}

func TestAllocate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		req    AllocateRequest
		status int
		code   string
	}{
		{"missing product", AllocateRequest{Quantity: 1}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"bad stage", AllocateRequest{ProductID: "phone", VariantID: "black", Quantity: 1, Stage: "finalize"}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"too many units", AllocateRequest{ProductID: "phone", VariantID: "black", Quantity: 4}, http.StatusUnprocessableEntity, string(inventory.CodeInsufficientCandidates)},
		{"unknown pick", AllocateRequest{ProductID: "phone", VariantID: "black", Quantity: 1, Picks: []string{"sn-9"}}, http.StatusUnprocessableEntity, string(inventory.CodeUnknownUnit)},
		{"short picks", AllocateRequest{ProductID: "phone", VariantID: "black", Quantity: 2, Picks: []string{"sn-1"}}, http.StatusUnprocessableEntity, string(inventory.CodeCountMismatch)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, http.MethodPost, "/v1/allocations", tt.req)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[errorBody](t, rec).Error.Code)
		})
	}
}

func TestFinalize_NotReserved(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/allocations/finalize", TransitionRequest{
		ProductID: "phone", VariantID: "black", UnitIDs: []string{"sn-1"},
	})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, inventory.StatusAvailable, f.inv.Status("sn-1"))
}

func TestFinalize_OtherProductIsUnprocessable(t *testing.T) {
	f := newFixture(t)
	f.inv.SetStatus("sn-1", inventory.StatusReserved)

	rec := f.do(t, http.MethodPost, "/v1/allocations/finalize", TransitionRequest{
		ProductID: "laptop", UnitIDs: []string{"sn-1"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	body := decode[errorBody](t, rec)
	assert.Equal(t, string(inventory.CodeInvalidCandidate), body.Error.Code)
	assert.Equal(t, inventory.StatusReserved, f.inv.Status("sn-1"))
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())

	f.do(t, http.MethodPost, "/v1/quote", `{"items": []}`)
	rec = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `till_quotes_total{status="empty"} 1`)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/v1/quote", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
