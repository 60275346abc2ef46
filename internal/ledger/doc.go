// Package ledger turns a cart into an authoritative set of totals.
//
// Discounts are applied additively against the original subtotal, never
// compounded: the automatic discount from the pricing engine plus the manual
// discount is capped at the subtotal. The delivery fee is added to the
// taxable base, tax is rounded half-up to minor units and the total is
// floored at zero. Cart status is always derived from the current cart and
// totals and is never stored.
//
// Everything here is pure. A Cart cannot be built in an invalid state;
// mutation methods validate and return a new Cart.
package ledger
