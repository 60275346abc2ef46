// Package pricing implements the automatic discount rule engine.
//
// A Catalog of PricingRules is evaluated against an Input (cart subtotal,
// unit count, customer, time of sale) to produce a Result: the aggregate
// automatic discount, the ids of the rules that contributed, and diagnostics
// for rules that could not be evaluated.
//
// Combination policy:
//   - Only enabled rules are considered.
//   - Within one category only the largest candidate applies (ties go to the
//     lexicographically smallest rule id).
//   - Winners of distinct categories are summed.
//   - The sum never exceeds the subtotal.
//
// Evaluate is a pure function. It reads nothing but its arguments, has no
// side effects, and returns identical results for identical inputs.
// Malformed rules are skipped and reported as Diagnostics; they never abort
// evaluation of the remaining rules.
package pricing
