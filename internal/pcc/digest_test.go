package pcc

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDigest_Format(t *testing.T) {
	// SHA-256 of "hello world" is a well-known value.
	want := "sha256-b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

	digest, n, err := Digest(strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("Digest() error: %v", err)
	}
	if digest != want {
		t.Errorf("Digest() = %q, want %q", digest, want)
	}
	if n != int64(len("hello world")) {
		t.Errorf("Digest() read %d bytes, want %d", n, len("hello world"))
	}

	if got := DigestBytes([]byte("hello world")); got != want {
		t.Errorf("DigestBytes() = %q, want %q", got, want)
	}
}

func TestDigest_EmptyInput(t *testing.T) {
	digest, n, err := Digest(bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("Digest() error: %v", err)
	}
	if n != 0 {
		t.Errorf("Digest() read %d bytes, want 0", n)
	}
	if !ValidDigest(digest) {
		t.Errorf("Digest() of empty input produced invalid digest %q", digest)
	}
}

func TestDigestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	content := []byte("# architecture\n\nsome analysis output\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	digest, size, err := DigestFile(path)
	if err != nil {
		t.Fatalf("DigestFile() error: %v", err)
	}
	if want := DigestBytes(content); digest != want {
		t.Errorf("DigestFile() = %q, want %q", digest, want)
	}
	if size != int64(len(content)) {
		t.Errorf("DigestFile() size = %d, want %d", size, len(content))
	}
}

func TestValidDigest(t *testing.T) {
	valid := DigestBytes([]byte("x"))

	tests := []struct {
		name   string
		digest string
		want   bool
	}{
		{"well-formed", valid, true},
		{"empty", "", false},
		{"missing prefix", strings.TrimPrefix(valid, DigestPrefix), false},
		{"wrong prefix", "md5-" + strings.TrimPrefix(valid, DigestPrefix), false},
		{"truncated hex", valid[:len(valid)-2], false},
		{"uppercase hex", DigestPrefix + strings.ToUpper(strings.TrimPrefix(valid, DigestPrefix)), false},
		{"non-hex characters", DigestPrefix + strings.Repeat("zz", 32), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidDigest(tt.digest); got != tt.want {
				t.Errorf("ValidDigest(%q) = %v, want %v", tt.digest, got, tt.want)
			}
		})
	}
}
