// Package sha256 fingerprints secrets so logs can show which cookie was
// captured without revealing it.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprintLen is the number of hex characters kept by Fingerprint.
const fingerprintLen = 12

// Hasher digests values with SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Sum returns the hex SHA-256 digest of value.
func (h *Hasher) Sum(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// Fingerprint returns the first characters of Sum(value), or "" for an empty
// value. Logs carry it so two runs can be compared without exposing the cookie.
func (h *Hasher) Fingerprint(value string) string {
	if value == "" {
		return ""
	}
	return h.Sum(value)[:fingerprintLen]
}
