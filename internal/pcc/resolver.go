package pcc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"pcc-go/internal/model"
)

// Resolver defaults. Threshold and window size are tunables, not invariants;
// override them through ResolverConfig.
const (
	DefaultSimilarityThreshold = 0.95
	DefaultHistoryWindow       = 10
	DefaultScanBudget          = 5 * time.Second
)

// ResolverConfig holds the tunables of the content-similarity tier.
type ResolverConfig struct {
	// SimilarityThreshold is the minimum Jaccard similarity (inclusive) for a
	// historical tree to count as a match.
	SimilarityThreshold float64

	// HistoryWindow caps how many recent snapshots are compared.
	HistoryWindow int

	// ScanBudget bounds the wall-clock time of the similarity scan. Running
	// out of budget falls through to full analysis; it is not an error.
	ScanBudget time.Duration

	// WeightBySize additionally weights the similarity score by size
	// equality on intersecting paths.
	WeightBySize bool
}

func (c ResolverConfig) withDefaults() ResolverConfig {
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if c.HistoryWindow == 0 {
		c.HistoryWindow = DefaultHistoryWindow
	}
	if c.ScanBudget == 0 {
		c.ScanBudget = DefaultScanBudget
	}
	return c
}

// FindRequest identifies the commit a caller wants analysis context for.
// ParentCommit enables the incremental tier; WorkspaceDir enables the
// content-similarity tier (the live working tree provides the target's tree
// signature). Both are optional.
type FindRequest struct {
	ProjectID    string
	Branch       string
	CommitSHA    string
	ParentCommit string
	WorkspaceDir string
}

// Resolver executes the tiered cache lookup policy. Tiers are tried in
// strict order and the first hit short-circuits the rest:
//
//  1. exact snapshot for the requested commit
//  2. snapshot for the parent commit on the same branch (incremental base)
//  3. the branch's latest analyzed commit (incremental base)
//  4. the snapshot at the branch's recorded fork point (cross-branch)
//  5. a recent snapshot whose tree signature is near-identical (rebase
//     recovery)
//
// A miss on every tier is reported as found=false / full_analysis; it is a
// normal outcome, never an error.
type Resolver struct {
	meta    *MetadataStore
	scanner WorkspaceScanner
	cfg     ResolverConfig
	logger  Logger
}

// NewResolver creates a Resolver. scanner may be nil, which disables the
// content-similarity tier for requests that rely on a live working tree.
func NewResolver(meta *MetadataStore, scanner WorkspaceScanner, cfg ResolverConfig, logger Logger) *Resolver {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Resolver{meta: meta, scanner: scanner, cfg: cfg.withDefaults(), logger: logger}
}

// FindBestContext resolves the best reusable base for the requested commit.
func (r *Resolver) FindBestContext(ctx context.Context, req FindRequest) (*model.CacheSearchResult, error) {
	if req.ProjectID == "" || req.Branch == "" || req.CommitSHA == "" {
		return nil, fmt.Errorf("find request requires project, branch and commit")
	}

	// Tier 1: exact match, zero recomputation.
	if _, err := r.meta.GetSnapshot(ctx, req.ProjectID, req.Branch, req.CommitSHA); err == nil {
		r.logger.Debug("cache hit", "tier", "exact", "commit", req.CommitSHA)
		return &model.CacheSearchResult{
			Found:          true,
			Strategy:       model.StrategyExact,
			ResolvedCommit: req.CommitSHA,
		}, nil
	} else if !IsNotFound(err) {
		return nil, fmt.Errorf("exact lookup: %w", err)
	}

	// Tier 2: parent commit on the same branch.
	if req.ParentCommit != "" {
		if _, err := r.meta.GetSnapshot(ctx, req.ProjectID, req.Branch, req.ParentCommit); err == nil {
			r.logger.Debug("cache hit", "tier", "parent", "base", req.ParentCommit)
			return &model.CacheSearchResult{
				Found:          true,
				Strategy:       model.StrategyIncremental,
				ResolvedCommit: req.ParentCommit,
			}, nil
		} else if !IsNotFound(err) {
			return nil, fmt.Errorf("parent lookup: %w", err)
		}
	}

	// Tier 3: the branch's most recently analyzed commit. Covers history
	// rewritten between polls and missing parent information.
	latest, err := r.meta.GetBranchLatest(ctx, req.ProjectID, req.Branch)
	if err == nil && latest.CommitSHA != "" {
		r.logger.Debug("cache hit", "tier", "branch-latest", "base", latest.CommitSHA)
		return &model.CacheSearchResult{
			Found:          true,
			Strategy:       model.StrategyIncremental,
			ResolvedCommit: latest.CommitSHA,
		}, nil
	}
	if err != nil && !IsNotFound(err) {
		return nil, fmt.Errorf("branch-latest lookup: %w", err)
	}

	// Tier 4: the fork point of a newly observed branch. Inherits the base
	// branch's context without repeating analysis.
	fork, err := r.meta.GetForkInfo(ctx, req.ProjectID, req.Branch)
	if err == nil {
		if _, err := r.meta.GetSnapshot(ctx, req.ProjectID, fork.BaseBranch, fork.BaseCommit); err == nil {
			r.logger.Debug("cache hit", "tier", "cross-branch",
				"base_branch", fork.BaseBranch, "base", fork.BaseCommit)
			return &model.CacheSearchResult{
				Found:          true,
				Strategy:       model.StrategyCrossBranch,
				ResolvedCommit: fork.BaseCommit,
				BaseBranch:     fork.BaseBranch,
			}, nil
		} else if !IsNotFound(err) {
			return nil, fmt.Errorf("fork-point lookup: %w", err)
		}
	} else if !IsNotFound(err) {
		return nil, fmt.Errorf("fork-info lookup: %w", err)
	}

	// Tier 5: tree-similarity scan over recent history.
	if result := r.findSimilar(ctx, req); result != nil {
		return result, nil
	}

	// Tier 6: nothing reusable; the caller must run a full analysis.
	return &model.CacheSearchResult{
		Found:    false,
		Strategy: model.StrategyFullAnalysis,
	}, nil
}

// findSimilar compares the request's live tree signature against a bounded
// window of recent snapshots, any branch. The scan is best-effort: a missing
// workspace, a scan error or an exhausted time budget all return nil so the
// resolver falls through to full analysis.
func (r *Resolver) findSimilar(ctx context.Context, req FindRequest) *model.CacheSearchResult {
	if req.WorkspaceDir == "" || r.scanner == nil {
		return nil
	}

	target, err := r.scanner.ScanTree(req.WorkspaceDir)
	if err != nil {
		r.logger.Warn("workspace scan failed, skipping similarity tier", "error", err)
		return nil
	}
	if len(target) == 0 {
		return nil
	}

	scanCtx, cancel := context.WithTimeout(ctx, r.cfg.ScanBudget)
	defer cancel()

	snapshots, err := r.meta.ListSnapshots(scanCtx, req.ProjectID)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		r.logger.Warn("snapshot scan failed, skipping similarity tier", "error", err)
		return nil
	}

	// Most recent first, then window.
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})
	if len(snapshots) > r.cfg.HistoryWindow {
		snapshots = snapshots[:r.cfg.HistoryWindow]
	}

	score := Jaccard
	if r.cfg.WeightBySize {
		score = WeightedJaccard
	}

	var best *model.SnapshotMetadata
	bestScore := -1.0
	for _, candidate := range snapshots {
		if scanCtx.Err() != nil {
			r.logger.Warn("similarity scan budget exhausted", "budget", r.cfg.ScanBudget)
			break
		}
		if candidate.CommitSHA == req.CommitSHA {
			continue // an exact snapshot would have hit tier 1
		}
		s := score(target, candidate.TreeSignature())
		if s > bestScore {
			best, bestScore = candidate, s
		}
	}

	if best == nil || bestScore < r.cfg.SimilarityThreshold {
		return nil
	}

	r.logger.Debug("cache hit", "tier", "content-similar",
		"base", best.CommitSHA, "similarity", bestScore)
	return &model.CacheSearchResult{
		Found:          true,
		Strategy:       model.StrategyContentSimilar,
		ResolvedCommit: best.CommitSHA,
		BaseBranch:     best.Branch,
		Similarity:     bestScore,
	}
}
