package pcc

import (
	"context"
	"time"

	"pcc-go/internal/model"
)

// ModuleResult is the analyzer's output for one module: the raw document
// bytes, or the per-module error. Errors are per-module, never fatal to the
// batch. Duration is how long this module's analysis took, independent of the
// rest of the batch.
type ModuleResult struct {
	Content  []byte
	Err      error
	Duration time.Duration
}

// Analyzer produces analysis documents for the requested modules of a
// workspace. It is a black box: any implementation that returns bytes or an
// error per requested module satisfies the contract.
type Analyzer interface {
	Analyze(ctx context.Context, workspace string, modules []string) (map[string]ModuleResult, error)
}

// ChangeDetector maps the diff between two commits of a workspace to the set
// of affected analysis modules.
type ChangeDetector interface {
	DetectChanges(ctx context.Context, workspace, baseCommit, currentCommit string) (*model.ChangeReport, error)
}

// WorkspaceScanner lists the files of a local working tree as a tree
// signature (path -> size). Used by the resolver's content-similarity tier.
type WorkspaceScanner interface {
	ScanTree(dir string) (model.TreeSignature, error)
}

// LocalIndex tracks digests known to be present in the remote content store,
// so repeated uploads and downloads can skip remote existence checks.
// Implementations may be nil-safe wrappers; the service treats a nil index as
// "always miss".
type LocalIndex interface {
	// HasBlob reports whether the digest has been recorded.
	HasBlob(digest string) (bool, error)

	// RecordBlob records that a blob with this digest and size exists in the
	// content store. Recording the same digest twice is a no-op.
	RecordBlob(digest string, size int64) error

	// Close closes the index.
	Close() error
}
