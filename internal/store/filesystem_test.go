package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"pcc-go/internal/pcc"
)

func newFSStore(t *testing.T) *FileSystemStore {
	t.Helper()
	s, err := NewFileSystemStore("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error: %v", err)
	}
	return s
}

func TestFileSystemStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := newFSStore(t)

	content := []byte("blob content")
	if err := s.Put(ctx, "objects/content/sha256-abc", bytes.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	var buf bytes.Buffer
	if err := s.Get(ctx, "objects/content/sha256-abc", &buf); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if buf.String() != "blob content" {
		t.Errorf("Get() = %q, want %q", buf.String(), "blob content")
	}
}

func TestFileSystemStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	s := newFSStore(t)

	var buf bytes.Buffer
	err := s.Get(ctx, "objects/content/missing", &buf)
	if !pcc.IsNotFound(err) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestFileSystemStore_Exists(t *testing.T) {
	ctx := context.Background()
	s := newFSStore(t)

	ok, err := s.Exists(ctx, "projects/p/branches/main/latest.json")
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if ok {
		t.Error("Exists() = true for missing key")
	}

	content := []byte("{}")
	if err := s.Put(ctx, "projects/p/branches/main/latest.json", bytes.NewReader(content), 2); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	ok, err = s.Exists(ctx, "projects/p/branches/main/latest.json")
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if !ok {
		t.Error("Exists() = false after Put")
	}
}

func TestFileSystemStore_PutSizeMismatch(t *testing.T) {
	ctx := context.Background()
	s := newFSStore(t)

	err := s.Put(ctx, "objects/content/x", strings.NewReader("four"), 99)
	if err == nil {
		t.Fatal("Put() accepted wrong declared size")
	}
	// The failed write must not leave a partial blob behind.
	ok, err := s.Exists(ctx, "objects/content/x")
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if ok {
		t.Error("blob exists after failed Put")
	}
}

func TestFileSystemStore_List(t *testing.T) {
	ctx := context.Background()
	s := newFSStore(t)

	for _, key := range []string{
		"projects/p/branches/main/commits/c1/metadata.json",
		"projects/p/branches/main/commits/c2/metadata.json",
		"projects/p/branches/main/latest.json",
		"objects/content/sha256-abc",
	} {
		if err := s.Put(ctx, key, strings.NewReader("x"), 1); err != nil {
			t.Fatalf("Put(%s) error: %v", key, err)
		}
	}

	keys, err := s.List(ctx, "projects/p/")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	sort.Strings(keys)
	want := []string{
		"projects/p/branches/main/commits/c1/metadata.json",
		"projects/p/branches/main/commits/c2/metadata.json",
		"projects/p/branches/main/latest.json",
	}
	if len(keys) != len(want) {
		t.Fatalf("List() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestFileSystemStore_ListSkipsTempFiles(t *testing.T) {
	ctx := context.Background()
	s := newFSStore(t)

	if err := s.Put(ctx, "objects/content/sha256-abc", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	// A stray temp file from an interrupted write must not surface as a key.
	stray := filepath.Join(s.root, "objects", "content", ".tmp-12345")
	if err := os.WriteFile(stray, []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}

	keys, err := s.List(ctx, "objects/")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(keys) != 1 || keys[0] != "objects/content/sha256-abc" {
		t.Errorf("List() = %v, want only the committed blob", keys)
	}
}

func TestFileSystemStore_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	s := newFSStore(t)

	tests := []string{
		"../outside",
		"objects/../../outside",
		"/etc/passwd",
		".",
	}
	for _, key := range tests {
		t.Run(key, func(t *testing.T) {
			if err := s.Put(ctx, key, strings.NewReader("x"), 1); err == nil {
				t.Errorf("Put(%q) accepted escaping key", key)
			}
			var buf bytes.Buffer
			if err := s.Get(ctx, key, &buf); err == nil {
				t.Errorf("Get(%q) accepted escaping key", key)
			}
		})
	}
}

func TestFileSystemStore_OverwriteIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newFSStore(t)

	if err := s.Put(ctx, "projects/p/branches/main/latest.json", strings.NewReader("old"), 3); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := s.Put(ctx, "projects/p/branches/main/latest.json", strings.NewReader("new!"), 4); err != nil {
		t.Fatalf("Put() overwrite error: %v", err)
	}

	var buf bytes.Buffer
	if err := s.Get(ctx, "projects/p/branches/main/latest.json", &buf); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if buf.String() != "new!" {
		t.Errorf("Get() = %q, want %q", buf.String(), "new!")
	}
}
