// Package catalog is the rule configuration collaborator. It reads pricing
// rules from CUE or YAML and hands the pricing engine an immutable
// pricing.Catalog.
//
// CUE layout, one struct per rule keyed by id:
//
//	rules: "gold-10": {
//		category: "loyalty"
//		type:     "percentage"
//		value:    10
//		cap:      2000
//		threshold: minPoints: 500
//	}
//
// YAML layout, a list under rules:
//
//	rules:
//	  - id: gold-10
//	    category: loyalty
//	    type: percentage
//	    value: 10
//	    threshold: {minPoints: 500}
//
// A rule that cannot be decoded becomes a diagnostic and is left out; only
// unreadable files fail the load.
package catalog
