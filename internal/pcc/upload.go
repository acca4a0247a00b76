package pcc

import (
	"context"
	"fmt"
	"sync"

	"pcc-go/internal/model"
)

// UploadRequest describes one snapshot to persist from a local directory of
// analysis artifacts. BaseBranch/BaseCommit identify the snapshot used for
// provenance comparison; leave them empty for a full analysis with no base.
type UploadRequest struct {
	ProjectID string
	Branch    string
	CommitSHA string
	LocalDir  string

	AnalysisKind    model.AnalysisKind
	Lineage         model.Lineage
	GitInfo         model.GitInfo
	PerModuleStatus map[string]model.ModuleStatus

	BaseBranch string
	BaseCommit string
}

// UploadSnapshot uploads every file under LocalDir into the content store,
// skipping blobs that already exist, then persists the snapshot manifest and
// updates the branch-latest pointer.
//
// Ordering is a write barrier: all blob writes must succeed before the
// manifest is written. A crash mid-upload leaves at most orphaned
// content-addressed blobs, never a manifest referencing a missing blob.
func (s *Service) UploadSnapshot(ctx context.Context, req UploadRequest) (*model.Stats, error) {
	if req.ProjectID == "" || req.Branch == "" || req.CommitSHA == "" {
		return nil, fmt.Errorf("upload requires project, branch and commit")
	}
	if req.AnalysisKind == "" {
		req.AnalysisKind = model.AnalysisFull
	}

	files, err := s.walker.Walk(req.LocalDir)
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", req.LocalDir, err)
	}

	base, err := s.loadBase(ctx, req)
	if err != nil {
		return nil, err
	}

	entries, err := s.uploadFiles(ctx, req, files, base)
	if err != nil {
		return nil, err
	}

	stats := finalizeStats(entries, base)

	now := s.clock.Now().UTC()
	meta := &model.SnapshotMetadata{
		SchemaVersion:   model.SchemaVersion,
		ProjectID:       req.ProjectID,
		Branch:          req.Branch,
		CommitSHA:       req.CommitSHA,
		Lineage:         req.Lineage,
		AnalysisKind:    req.AnalysisKind,
		FileEntries:     entries,
		PerModuleStatus: req.PerModuleStatus,
		Stats:           stats,
		GitInfo:         req.GitInfo,
		CreatedAt:       now,
	}
	if meta.GitInfo.CommitSHA == "" {
		meta.GitInfo.CommitSHA = req.CommitSHA
	}

	// Write barrier: every blob confirmed before this point.
	if err := s.meta.PutSnapshot(ctx, meta); err != nil {
		return nil, err
	}

	latest := model.BranchLatest{
		CommitSHA:    req.CommitSHA,
		CreatedAt:    now,
		AnalysisKind: req.AnalysisKind,
	}
	if err := s.meta.SetBranchLatest(ctx, req.ProjectID, req.Branch, latest); err != nil {
		if IsConflict(err) {
			// A newer analysis already advanced the pointer; the snapshot
			// itself is persisted and queryable.
			s.logger.Warn("latest pointer not advanced", "branch", req.Branch, "error", err)
		} else {
			return nil, err
		}
	}

	s.logger.Info("snapshot uploaded", "project", req.ProjectID, "branch", req.Branch,
		"commit", req.CommitSHA, "total", stats.TotalFiles, "inherited", stats.InheritedFiles,
		"updated", stats.UpdatedFiles, "new", stats.NewFiles)
	return &stats, nil
}

// loadBase fetches the provenance base snapshot named by the request. A
// missing base degrades to no-base (everything becomes "new") with a warning
// rather than failing the upload.
func (s *Service) loadBase(ctx context.Context, req UploadRequest) (*model.SnapshotMetadata, error) {
	if req.BaseCommit == "" {
		return nil, nil
	}
	baseBranch := req.BaseBranch
	if baseBranch == "" {
		baseBranch = req.Branch
	}
	base, err := s.meta.GetSnapshot(ctx, req.ProjectID, baseBranch, req.BaseCommit)
	if err != nil {
		if IsNotFound(err) {
			s.logger.Warn("base snapshot missing, uploading without provenance base",
				"base_branch", baseBranch, "base", req.BaseCommit)
			return nil, nil
		}
		return nil, fmt.Errorf("loading base snapshot: %w", err)
	}
	return base, nil
}

// uploadFiles hashes and uploads the files over a bounded worker pool and
// returns the finished file entries. Any failure aborts the whole upload.
func (s *Service) uploadFiles(ctx context.Context, req UploadRequest, files []LocalFile, base *model.SnapshotMetadata) (map[string]model.FileEntry, error) {
	type result struct {
		entry model.FileEntry
		err   error
	}

	jobs := make(chan LocalFile)
	results := make(chan result)

	workers := s.workers
	if workers > len(files) {
		workers = len(files)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				entry, err := s.uploadOne(ctx, req, f, base)
				results <- result{entry: entry, err: err}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, f := range files {
			select {
			case jobs <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	entries := make(map[string]model.FileEntry, len(files))
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		entries[res.entry.LogicalPath] = res.entry
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// uploadOne hashes one file, classifies its provenance against the base
// snapshot, and uploads the blob unless it is already stored.
func (s *Service) uploadOne(ctx context.Context, req UploadRequest, f LocalFile, base *model.SnapshotMetadata) (model.FileEntry, error) {
	digest, size, err := DigestFile(f.AbsPath)
	if err != nil {
		return model.FileEntry{}, err
	}

	if !s.hasBlob(digest) {
		// PutFile re-checks remote existence, so a stale index costs only an
		// extra round trip, never a duplicate object.
		if digest, size, err = s.content.PutFile(ctx, f.AbsPath); err != nil {
			return model.FileEntry{}, fmt.Errorf("uploading %s: %w", f.RelPath, err)
		}
	}
	s.recordBlob(digest, size)

	entry := model.FileEntry{
		LogicalPath:  f.RelPath,
		Digest:       digest,
		SizeBytes:    size,
		Provenance:   model.ProvenanceNew,
		SourceCommit: req.CommitSHA,
	}

	if base != nil {
		if prev, ok := base.FileEntries[f.RelPath]; ok {
			if prev.Digest == digest {
				entry.Provenance = model.ProvenanceInherited
				entry.SourceCommit = prev.SourceCommit
			} else {
				entry.Provenance = model.ProvenanceUpdated
				entry.PreviousDigest = prev.Digest
			}
		}
	}
	return entry, nil
}

// finalizeStats computes aggregate provenance counts for a finished entry
// set. Deleted files are base entries with no counterpart in the new
// snapshot.
func finalizeStats(entries map[string]model.FileEntry, base *model.SnapshotMetadata) model.Stats {
	var stats model.Stats
	stats.TotalFiles = len(entries)
	for _, e := range entries {
		switch e.Provenance {
		case model.ProvenanceInherited:
			stats.InheritedFiles++
		case model.ProvenanceUpdated:
			stats.UpdatedFiles++
		case model.ProvenanceNew:
			stats.NewFiles++
		}
	}
	if base != nil {
		for path := range base.FileEntries {
			if _, ok := entries[path]; !ok {
				stats.DeletedFiles++
			}
		}
	}
	if stats.TotalFiles > 0 {
		stats.DeduplicationRatio = float64(stats.InheritedFiles) / float64(stats.TotalFiles)
	}
	return stats
}
