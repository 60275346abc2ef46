package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes keep fingerprints of different record kinds apart.
const (
	DomainQuote      = "till/quote/v1"
	DomainAllocation = "till/allocation/v1"
)

// Fingerprint returns hex(SHA256(domain || 0x00 || canonical(v))).
func Fingerprint(domain string, v any) (string, error) {
	data, err := Canonical(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", domain, err)
	}
	return hashWithDomain(domain, data), nil
}

// Verify recomputes the fingerprint of v and compares it with want.
func Verify(domain string, v any, want string) (bool, error) {
	got, err := Fingerprint(domain, v)
	if err != nil {
		return false, err
	}
	return got == want, nil
}

func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
