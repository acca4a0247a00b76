package testutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the content digest of data in the store's format:
// "sha256-" followed by the lowercase hex SHA-256 checksum.
func Digest(data []byte) string {
	h := sha256.Sum256(data)
	return "sha256-" + hex.EncodeToString(h[:])
}
