package fs

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func walkedPaths(t *testing.T, w *Walker, dir string) []string {
	t.Helper()
	files, err := w.Walk(dir)
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.RelPath
	}
	sort.Strings(paths)
	return paths
}

func TestWalker_Walk(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"architecture.md":   "arch",
		"modules/api.md":    "api",
		"modules/domain.md": "domain",
	})

	got := walkedPaths(t, NewWalker(nil), dir)
	want := []string{"architecture.md", "modules/api.md", "modules/domain.md"}
	if len(got) != len(want) {
		t.Fatalf("Walk() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Walk()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWalker_DefaultIgnores(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"keep.md":      "x",
		".git/HEAD":    "ref: refs/heads/main",
		".git/config":  "",
		IgnoreFileName: "",
	})

	got := walkedPaths(t, NewWalker(nil), dir)
	if len(got) != 1 || got[0] != "keep.md" {
		t.Errorf("Walk() = %v, want only keep.md", got)
	}
}

func TestWalker_IgnoreFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"keep.md":        "x",
		"debug.log":      "x",
		"cache/data.bin": "x",
		IgnoreFileName:   "*.log\ncache\n",
	})

	got := walkedPaths(t, NewWalker(nil), dir)
	if len(got) != 1 || got[0] != "keep.md" {
		t.Errorf("Walk() = %v, want only keep.md", got)
	}
}

func TestWalker_ExtraPatterns(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"keep.md":     "x",
		"scratch.tmp": "x",
	})

	got := walkedPaths(t, NewWalker([]string{"*.tmp"}), dir)
	if len(got) != 1 || got[0] != "keep.md" {
		t.Errorf("Walk() = %v, want only keep.md", got)
	}
}

func TestWalker_ScanTree(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.md":         "12345",
		"sub/b.md":     "1234567890",
		IgnoreFileName: "",
	})

	sig, err := NewWalker(nil).ScanTree(dir)
	if err != nil {
		t.Fatalf("ScanTree() error: %v", err)
	}
	if len(sig) != 2 {
		t.Fatalf("ScanTree() = %v, want 2 entries", sig)
	}
	if sig["a.md"] != 5 {
		t.Errorf("sig[a.md] = %d, want 5", sig["a.md"])
	}
	if sig["sub/b.md"] != 10 {
		t.Errorf("sig[sub/b.md] = %d, want 10", sig["sub/b.md"])
	}
}

func TestWalker_EmptyDir(t *testing.T) {
	files, err := NewWalker(nil).Walk(t.TempDir())
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("Walk() = %v, want no files", files)
	}
}
