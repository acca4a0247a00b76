package fs

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"pcc-go/internal/model"
	"pcc-go/internal/pcc"
)

// Walker discovers regular files under a directory, honoring ignore patterns.
// It implements both pcc.FileWalker and pcc.WorkspaceScanner: the same
// traversal produces the upload file list and the tree signature used for
// similarity matching.
type Walker struct {
	extraPatterns []string
}

// NewWalker creates a Walker. extraPatterns are applied in addition to the
// built-in defaults and any .pccignore file found at the directory root.
func NewWalker(extraPatterns []string) *Walker {
	return &Walker{extraPatterns: extraPatterns}
}

// Walk returns all regular files under dir that are not ignored. Returned
// relative paths use forward slashes.
func (w *Walker) Walk(dir string) ([]pcc.LocalFile, error) {
	var files []pcc.LocalFile
	err := w.walk(dir, func(relPath, absPath string, size int64) {
		files = append(files, pcc.LocalFile{
			RelPath: relPath,
			AbsPath: absPath,
			Size:    size,
		})
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// ScanTree returns the tree signature of dir: a map of relative file path to
// size in bytes for every non-ignored regular file.
func (w *Walker) ScanTree(dir string) (model.TreeSignature, error) {
	sig := model.TreeSignature{}
	err := w.walk(dir, func(relPath, absPath string, size int64) {
		sig[relPath] = size
	})
	if err != nil {
		return nil, err
	}
	return sig, nil
}

func (w *Walker) walk(dir string, visit func(relPath, absPath string, size int64)) error {
	matcher, err := w.matcherFor(dir)
	if err != nil {
		return err
	}

	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == dir {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return fmt.Errorf("computing relative path for %s: %w", p, err)
		}

		if d.IsDir() {
			if matcher.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if matcher.Match(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		visit(filepath.ToSlash(rel), p, info.Size())
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking directory: %w", err)
	}
	return nil
}

func (w *Walker) matcherFor(dir string) (*IgnoreMatcher, error) {
	filePatterns, err := ParseIgnoreFile(filepath.Join(dir, IgnoreFileName))
	if err != nil {
		return nil, err
	}

	var raw []string
	raw = append(raw, defaultIgnorePatterns...)
	raw = append(raw, w.extraPatterns...)
	raw = append(raw, filePatterns...)
	return NewIgnoreMatcher(raw), nil
}

var _ pcc.FileWalker = (*Walker)(nil)
var _ pcc.WorkspaceScanner = (*Walker)(nil)
