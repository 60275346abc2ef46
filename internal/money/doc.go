// Package money holds the integer money primitives shared by pricing and the ledger.
//
// Every amount is an Amount in minor units (cents for USD). Fractions only ever
// appear as rates (tax) or percentages (discount rules) and are carried as
// shopspring decimals, then rounded back to minor units with round-half-up.
// Display formatting happens at the edge through Formatter and never feeds back
// into arithmetic.
package money
