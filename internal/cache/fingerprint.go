// Package cache provides a content-addressed store for enriched document
// units, keyed by a fingerprint of the source bytes.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a deterministic digest of content. Identical bytes
// always yield identical fingerprints regardless of filename; any byte change
// yields a different fingerprint. This is the sole cache-validity signal.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
