// Package audit produces reproducible fingerprints of computed quotes.
//
// A quote is encoded as canonical JSON (sorted keys in UTF-16 order, NFC
// strings, no HTML escaping, integers only) and hashed with SHA-256 under a
// versioned domain prefix. Two quotes with the same inputs and outputs always
// have the same fingerprint, so a printed receipt can be checked later.
package audit
