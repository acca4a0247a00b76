package pcc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"pcc-go/internal/model"
)

// IncrementalRequest drives one incremental analysis run on top of a
// resolved base snapshot.
type IncrementalRequest struct {
	ProjectID string
	Branch    string
	CommitSHA string

	// Base is the result of FindBestContext; Found must be true.
	Base model.CacheSearchResult

	// WorkspaceDir is the git checkout used by the change detector.
	WorkspaceDir string

	// ContextDir is the local directory holding analysis artifacts. The base
	// snapshot is materialized here and updated module documents are written
	// over it before upload.
	ContextDir string

	GitInfo model.GitInfo
	Decrypt DecryptionContext
}

// IncrementalResult reports the outcome of an incremental run. Warning is a
// non-nil *PartialFailure when one or more modules failed; the snapshot is
// still persisted with those modules flagged.
type IncrementalResult struct {
	Stats           *model.Stats
	AffectedModules []string
	FailedModules   []string
	Warning         *PartialFailure
}

// RunIncremental performs the incremental orchestration: materialize the base
// snapshot, detect which modules the commit range affects, re-analyze only
// those, and upload the merged result. Module failures are tolerated — a
// degraded context is preferable to none — and reported via the result's
// Warning, never as an error.
func (s *Service) RunIncremental(ctx context.Context, req IncrementalRequest) (*IncrementalResult, error) {
	if s.detector == nil || s.analyzer == nil {
		return nil, fmt.Errorf("incremental runs require a change detector and an analyzer")
	}
	if !req.Base.Found {
		return nil, fmt.Errorf("incremental run requires a resolved base")
	}

	baseBranch := req.Base.BaseBranch
	if baseBranch == "" {
		baseBranch = req.Branch
	}
	baseCommit := req.Base.ResolvedCommit

	// Materialize the base context. Inherited files must be complete, so any
	// download failure aborts the run.
	if _, err := s.DownloadSnapshot(ctx, req.ProjectID, baseBranch, baseCommit, req.ContextDir, req.Decrypt); err != nil {
		return nil, fmt.Errorf("materializing base %s: %w", baseCommit, err)
	}
	baseMeta, err := s.meta.GetSnapshot(ctx, req.ProjectID, baseBranch, baseCommit)
	if err != nil {
		return nil, err
	}

	report, err := s.detector.DetectChanges(ctx, req.WorkspaceDir, baseCommit, req.CommitSHA)
	if err != nil {
		return nil, fmt.Errorf("detecting changes %s..%s: %w", baseCommit, req.CommitSHA, err)
	}
	s.logger.Info("changes detected", "base", baseCommit, "commit", req.CommitSHA,
		"modules", len(report.AffectedModules), "files", report.TotalChangedFiles)

	moduleStatus := inheritedModuleStatus(baseMeta, baseCommit)
	failed := make(map[string]error)

	if len(report.AffectedModules) > 0 {
		results, err := s.analyzer.Analyze(ctx, req.WorkspaceDir, report.AffectedModules)
		if err != nil {
			return nil, fmt.Errorf("analyzing modules: %w", err)
		}

		for _, module := range report.AffectedModules {
			res, ok := results[module]
			switch {
			case !ok:
				moduleStatus[module] = model.ModuleStatus{Status: model.ModuleSkipped}
			case res.Err != nil:
				// Keep the base document; the module stays usable, just
				// stale, and the failure is flagged in the manifest.
				failed[module] = res.Err
				moduleStatus[module] = model.ModuleStatus{Status: model.ModuleFailed, DurationMs: res.Duration.Milliseconds()}
				s.logger.Warn("module analysis failed", "module", module, "error", res.Err)
			default:
				docPath := filepath.Join(req.ContextDir, moduleDocument(module))
				if err := os.WriteFile(docPath, res.Content, 0644); err != nil {
					return nil, fmt.Errorf("writing %s document: %w", module, err)
				}
				moduleStatus[module] = model.ModuleStatus{
					Status:       model.ModuleSuccess,
					DurationMs:   res.Duration.Milliseconds(),
					SourceCommit: req.CommitSHA,
				}
			}
		}
	}

	lineage := model.Lineage{ParentCommit: baseCommit}
	if req.Base.Strategy == model.StrategyCrossBranch {
		lineage.BaseBranch = req.Base.BaseBranch
		lineage.BaseCommit = baseCommit
		lineage.ForkType = model.ForkBranch
	}

	stats, err := s.UploadSnapshot(ctx, UploadRequest{
		ProjectID:       req.ProjectID,
		Branch:          req.Branch,
		CommitSHA:       req.CommitSHA,
		LocalDir:        req.ContextDir,
		AnalysisKind:    model.AnalysisIncremental,
		Lineage:         lineage,
		GitInfo:         req.GitInfo,
		PerModuleStatus: moduleStatus,
		BaseBranch:      baseBranch,
		BaseCommit:      baseCommit,
	})
	if err != nil {
		return nil, err
	}

	result := &IncrementalResult{
		Stats:           stats,
		AffectedModules: report.AffectedModules,
		FailedModules:   sortedKeys(failed),
	}
	if len(failed) > 0 {
		result.Warning = &PartialFailure{Op: "analyze", Failed: failed}
	}
	return result, nil
}

// inheritedModuleStatus seeds the per-module map from the base snapshot: all
// base modules start as inherited, pointing at the commit their content
// actually came from.
func inheritedModuleStatus(base *model.SnapshotMetadata, baseCommit string) map[string]model.ModuleStatus {
	statuses := make(map[string]model.ModuleStatus, len(base.PerModuleStatus))
	for module, prev := range base.PerModuleStatus {
		source := prev.SourceCommit
		if source == "" {
			source = baseCommit
		}
		statuses[module] = model.ModuleStatus{Status: model.ModuleInherited, SourceCommit: source}
	}
	return statuses
}

// moduleDocument maps a module name to its document path within the context
// directory.
func moduleDocument(module string) string {
	return module + ".md"
}

func sortedKeys(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
