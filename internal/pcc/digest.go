package pcc

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// DigestPrefix tags every digest with its algorithm so the scheme can be
// migrated later without ambiguity.
const DigestPrefix = "sha256-"

// Digest computes the sha256-prefixed digest of everything read from r.
// Hashing is streamed, so memory use is constant regardless of input size.
// Returns the digest and the number of bytes read.
func Digest(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, fmt.Errorf("hashing content: %w", err)
	}
	return DigestPrefix + hex.EncodeToString(h.Sum(nil)), n, nil
}

// DigestBytes computes the sha256-prefixed digest of data.
func DigestBytes(data []byte) string {
	h := sha256.Sum256(data)
	return DigestPrefix + hex.EncodeToString(h[:])
}

// DigestFile computes the sha256-prefixed digest of the file at path.
func DigestFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return Digest(f)
}

// ValidDigest reports whether s looks like a well-formed digest:
// the algorithm prefix followed by 64 lowercase hex characters.
func ValidDigest(s string) bool {
	if !strings.HasPrefix(s, DigestPrefix) {
		return false
	}
	hexPart := s[len(DigestPrefix):]
	if len(hexPart) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(hexPart)
	return err == nil && strings.ToLower(hexPart) == hexPart
}
