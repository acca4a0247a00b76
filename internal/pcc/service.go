package pcc

import (
	"context"
	"fmt"

	"pcc-go/internal/model"
)

// DefaultWorkers bounds the transfer and analysis worker pools. Bounded
// fan-out respects downstream rate limits on the remote store.
const DefaultWorkers = 5

// LocalFile is one regular file discovered under a local directory.
type LocalFile struct {
	RelPath string // slash-separated path relative to the walked root
	AbsPath string
	Size    int64
}

// FileWalker lists the regular files under a local directory.
type FileWalker interface {
	Walk(dir string) ([]LocalFile, error)
}

// Service is the orchestration layer that coordinates the content store,
// metadata store, resolver and external collaborators to perform the
// high-level cache operations needed by the CLI.
type Service struct {
	content  *ContentStore
	meta     *MetadataStore
	resolver *Resolver
	walker   FileWalker
	index    LocalIndex     // optional; nil disables local dedup bookkeeping
	detector ChangeDetector // required for RunIncremental
	analyzer Analyzer       // required for RunIncremental
	logger   Logger
	clock    Clock
	workers  int
}

// NewService creates a Service with the provided dependencies. index,
// detector and analyzer may be nil when the corresponding operations are not
// used. workers <= 0 selects DefaultWorkers.
func NewService(content *ContentStore, meta *MetadataStore, resolver *Resolver, walker FileWalker,
	index LocalIndex, detector ChangeDetector, analyzer Analyzer,
	logger Logger, clock Clock, workers int) *Service {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Service{
		content:  content,
		meta:     meta,
		resolver: resolver,
		walker:   walker,
		index:    index,
		detector: detector,
		analyzer: analyzer,
		logger:   logger,
		clock:    clock,
		workers:  workers,
	}
}

// FindBestContext executes the tiered cache lookup for the requested commit.
func (s *Service) FindBestContext(ctx context.Context, req FindRequest) (*model.CacheSearchResult, error) {
	return s.resolver.FindBestContext(ctx, req)
}

// RecordFork records that branch was cut from baseBranch at baseCommit.
// Write-once: if the branch already has fork info, this is a silent no-op.
func (s *Service) RecordFork(ctx context.Context, projectID, branch, baseBranch, baseCommit, createdBy string) error {
	if projectID == "" || branch == "" || baseBranch == "" || baseCommit == "" {
		return fmt.Errorf("record fork requires project, branch, base branch and base commit")
	}
	fork := model.BranchForkInfo{
		BaseBranch: baseBranch,
		BaseCommit: baseCommit,
		CreatedAt:  s.clock.Now().UTC(),
		ForkType:   model.ForkBranch,
		CreatedBy:  createdBy,
	}
	if err := s.meta.RecordFork(ctx, projectID, branch, fork); err != nil {
		return err
	}
	s.logger.Info("fork recorded", "project", projectID, "branch", branch,
		"base_branch", baseBranch, "base", baseCommit)
	return nil
}

// GetSnapshot loads one snapshot manifest.
func (s *Service) GetSnapshot(ctx context.Context, projectID, branch, commitSHA string) (*model.SnapshotMetadata, error) {
	return s.meta.GetSnapshot(ctx, projectID, branch, commitSHA)
}

// GetBranchLatest returns the branch's latest analyzed commit pointer.
func (s *Service) GetBranchLatest(ctx context.Context, projectID, branch string) (*model.BranchLatest, error) {
	return s.meta.GetBranchLatest(ctx, projectID, branch)
}

// hasBlob consults the local index, treating a nil or failing index as a
// miss. The index is an optimization only; correctness never depends on it.
func (s *Service) hasBlob(digest string) bool {
	if s.index == nil {
		return false
	}
	ok, err := s.index.HasBlob(digest)
	if err != nil {
		s.logger.Warn("local index lookup failed", "digest", digest, "error", err)
		return false
	}
	return ok
}

// recordBlob best-effort records a digest in the local index.
func (s *Service) recordBlob(digest string, size int64) {
	if s.index == nil {
		return
	}
	if err := s.index.RecordBlob(digest, size); err != nil {
		s.logger.Warn("local index record failed", "digest", digest, "error", err)
	}
}
