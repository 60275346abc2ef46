// Package scenario runs checkout scenarios: a cart, a rule catalog and the
// store inputs of a quote, checked against expected totals.
//
// # Scenario Format
//
//	name: gold_member_bulk
//	description: "Loyalty and bulk rules stack across categories"
//	rules: rules.yaml            # relative to the scenario file
//	tax_rate: "0.10"
//	delivery_fee: 0
//	at: "2026-03-14T17:30:00Z"
//	customer:
//	  id: c-1
//	  points_balance: 800
//	  tier: gold
//	manual_discount:
//	  type: fixed
//	  value: "500"
//	items:
//	  - product_id: phone
//	    variant_id: black
//	    unit_price: 10000
//	    quantity: 1
//	    available: 3
//	expect:
//	  subtotal: 10000
//	  automatic_discount: 1000
//	  total: 9900
//	  status: ready
//	  applied_rules: [gold-10]
//
// Every expect field is optional; only the ones present are checked.
//
// # Golden Files
//
// RunWithGolden compares the canonical JSON of a run against
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/scenario -update
package scenario
