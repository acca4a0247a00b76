package pcc

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ContentStore addresses immutable blobs by their digest. Identical content
// always maps to the same key, so deduplication is automatic: a put of
// already-stored content is a no-op. When an Encryptor is configured, blobs
// are encrypted at rest; digests always refer to the plaintext.
type ContentStore struct {
	blobs     BlobStore
	encryptor Encryptor // nil = store plaintext
}

// NewContentStore creates a ContentStore over the given blob store.
// encryptor may be nil to disable at-rest encryption.
func NewContentStore(blobs BlobStore, encryptor Encryptor) *ContentStore {
	return &ContentStore{blobs: blobs, encryptor: encryptor}
}

// Put stores data and returns its digest. Repeated puts of identical bytes
// are no-ops after the first.
func (c *ContentStore) Put(ctx context.Context, data []byte) (string, error) {
	digest := DigestBytes(data)
	exists, err := c.blobs.Exists(ctx, contentKey(digest))
	if err != nil {
		return "", fmt.Errorf("checking content %s: %w", digest, err)
	}
	if exists {
		return digest, nil
	}
	if err := c.putStream(ctx, digest, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", err
	}
	return digest, nil
}

// PutFile hashes the file at path by streaming, then uploads it unless a blob
// with the same digest already exists. Returns the digest and plaintext size.
func (c *ContentStore) PutFile(ctx context.Context, path string) (string, int64, error) {
	digest, size, err := DigestFile(path)
	if err != nil {
		return "", 0, err
	}

	exists, err := c.blobs.Exists(ctx, contentKey(digest))
	if err != nil {
		return "", 0, fmt.Errorf("checking content %s: %w", digest, err)
	}
	if exists {
		return digest, size, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if err := c.putStream(ctx, digest, f, size); err != nil {
		return "", 0, err
	}
	return digest, size, nil
}

// Exists reports whether content with the given digest is stored.
func (c *ContentStore) Exists(ctx context.Context, digest string) (bool, error) {
	return c.blobs.Exists(ctx, contentKey(digest))
}

// Get retrieves content by digest and writes the plaintext to w, verifying
// the digest along the way. If the stored bytes do not hash back to the
// requested digest, an error wrapping ErrCorrupt is returned; callers must
// not use what was written to w in that case.
//
// decrypt is required when the store was configured with an Encryptor and
// ignored otherwise.
func (c *ContentStore) Get(ctx context.Context, digest string, w io.Writer, decrypt DecryptionContext) error {
	if !ValidDigest(digest) {
		return fmt.Errorf("malformed digest %q", digest)
	}

	h := sha256.New()
	dst := io.MultiWriter(h, w)

	if c.encryptor == nil {
		if err := c.blobs.Get(ctx, contentKey(digest), dst); err != nil {
			return err
		}
	} else {
		if decrypt == nil {
			return fmt.Errorf("content store is encrypted: decryption context required")
		}
		if err := c.getDecrypted(ctx, digest, dst, decrypt); err != nil {
			return err
		}
	}

	got := DigestPrefix + hex.EncodeToString(h.Sum(nil))
	if got != digest {
		return fmt.Errorf("content %s hashed to %s: %w", digest, got, ErrCorrupt)
	}
	return nil
}

// getDecrypted streams ciphertext from the blob store through the decryption
// context into dst.
func (c *ContentStore) getDecrypted(ctx context.Context, digest string, dst io.Writer, decrypt DecryptionContext) error {
	pr, pw := io.Pipe()
	getDone := make(chan error, 1)
	go func() {
		err := c.blobs.Get(ctx, contentKey(digest), pw)
		pw.CloseWithError(err)
		getDone <- err
	}()

	decErr := decrypt.Decrypt(pr, dst)
	pr.Close()
	if getErr := <-getDone; getErr != nil {
		return getErr
	}
	if decErr != nil {
		return fmt.Errorf("decrypting %s: %w", digest, decErr)
	}
	return nil
}

// putStream writes a blob under its digest key, encrypting first if an
// Encryptor is configured. Ciphertext size is unknown until encryption
// completes, so the encrypted path spools through a temp file rather than
// buffering in memory.
func (c *ContentStore) putStream(ctx context.Context, digest string, r io.Reader, size int64) error {
	if c.encryptor == nil {
		if err := c.blobs.Put(ctx, contentKey(digest), r, size); err != nil {
			return fmt.Errorf("storing content %s: %w", digest, err)
		}
		return nil
	}

	tmp, err := os.CreateTemp("", "pcc-enc-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	defer tmp.Close()

	if err := c.encryptor.Encrypt(r, tmp); err != nil {
		return fmt.Errorf("encrypting content %s: %w", digest, err)
	}

	info, err := tmp.Stat()
	if err != nil {
		return fmt.Errorf("stat temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding temp file: %w", err)
	}

	if err := c.blobs.Put(ctx, contentKey(digest), tmp, info.Size()); err != nil {
		return fmt.Errorf("storing content %s: %w", digest, err)
	}
	return nil
}
