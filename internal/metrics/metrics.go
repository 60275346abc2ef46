// Package metrics exposes Prometheus collectors for quotes and allocations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/till/internal/pricing"
)

// Metrics holds the till collectors. A nil *Metrics records nothing.
type Metrics struct {
	Quotes          *prometheus.CounterVec
	Allocations     *prometheus.CounterVec
	RuleDiagnostics *prometheus.CounterVec
	QuoteTotal      prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Quotes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "till_quotes_total",
				Help: "Quotes computed, by resulting cart status.",
			},
			[]string{"status"},
		),
		Allocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "till_allocations_total",
				Help: "Serialized unit allocation attempts, by outcome.",
			},
			[]string{"outcome"},
		),
		RuleDiagnostics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "till_rule_diagnostics_total",
				Help: "Pricing rules skipped as malformed, by category.",
			},
			[]string{"category"},
		),
		QuoteTotal: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "till_quote_total_minor_units",
			Help:    "Distribution of quoted totals in minor units.",
			Buckets: prometheus.ExponentialBuckets(100, 4, 10),
		}),
	}
	reg.MustRegister(m.Quotes, m.Allocations, m.RuleDiagnostics, m.QuoteTotal)
	return m
}

// ObserveQuote counts one quote and its diagnostics.
func (m *Metrics) ObserveQuote(status string, total int64, diags []pricing.Diagnostic) {
	if m == nil {
		return
	}
	m.Quotes.WithLabelValues(status).Inc()
	m.QuoteTotal.Observe(float64(total))
	for _, d := range diags {
		cat := string(d.Category)
		if cat == "" {
			cat = "unknown"
		}
		m.RuleDiagnostics.WithLabelValues(cat).Inc()
	}
}

// ObserveAllocation counts one allocation outcome. It satisfies
// inventory.Recorder.
func (m *Metrics) ObserveAllocation(outcome string) {
	if m == nil {
		return
	}
	m.Allocations.WithLabelValues(outcome).Inc()
}
