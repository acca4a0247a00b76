package pcc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"pcc-go/internal/model"
)

// DownloadResult summarizes one snapshot download. Failed maps logical paths
// to their causes; files listed there were not written to the destination.
type DownloadResult struct {
	Snapshot   *model.SnapshotMetadata
	Downloaded int
	Skipped    int // already present with matching digest
	Failed     map[string]error
}

// DownloadSnapshot materializes a snapshot's files under destDir,
// reconstructing the directory structure of the manifest. Files already
// present with a matching digest are not fetched again. Every fetched blob is
// digest-verified before it reaches its final path; a mismatch surfaces as
// ErrCorrupt for that file and nothing corrupt is left in destDir.
//
// decrypt is required when the content store is encrypted, nil otherwise.
// Per-file failures do not abort the download: the returned error wraps a
// *PartialFailure listing them, alongside a result covering the successes.
func (s *Service) DownloadSnapshot(ctx context.Context, projectID, branch, commitSHA, destDir string, decrypt DecryptionContext) (*DownloadResult, error) {
	meta, err := s.meta.GetSnapshot(ctx, projectID, branch, commitSHA)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", destDir, err)
	}

	res := &DownloadResult{Snapshot: meta, Failed: make(map[string]error)}

	type outcome struct {
		path    string
		skipped bool
		err     error
	}

	jobs := make(chan model.FileEntry)
	outcomes := make(chan outcome)

	workers := s.workers
	if workers > len(meta.FileEntries) {
		workers = len(meta.FileEntries)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				skipped, err := s.downloadOne(ctx, entry, destDir, decrypt)
				outcomes <- outcome{path: entry.LogicalPath, skipped: skipped, err: err}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, entry := range meta.FileEntries {
			select {
			case jobs <- entry:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for o := range outcomes {
		switch {
		case o.err != nil:
			res.Failed[o.path] = o.err
		case o.skipped:
			res.Skipped++
		default:
			res.Downloaded++
		}
	}

	if len(res.Failed) > 0 {
		return res, &PartialFailure{Op: "download", Failed: res.Failed}
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	s.logger.Info("snapshot downloaded", "project", projectID, "branch", branch,
		"commit", commitSHA, "downloaded", res.Downloaded, "skipped", res.Skipped)
	return res, nil
}

// downloadOne fetches a single manifest entry unless the destination already
// holds identical content. The blob is written to a temp file, verified, and
// only then renamed into place.
func (s *Service) downloadOne(ctx context.Context, entry model.FileEntry, destDir string, decrypt DecryptionContext) (skipped bool, err error) {
	destPath := filepath.Join(destDir, filepath.FromSlash(entry.LogicalPath))

	// Local dedup: an existing file with the right digest needs no fetch.
	if info, statErr := os.Stat(destPath); statErr == nil && info.Size() == entry.SizeBytes {
		if existing, _, hashErr := DigestFile(destPath); hashErr == nil && existing == entry.Digest {
			return true, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return false, fmt.Errorf("creating directory for %s: %w", entry.LogicalPath, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".pcc-tmp-*")
	if err != nil {
		return false, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		tmp.Close()
		if !success {
			os.Remove(tmpPath)
		}
	}()

	// Get verifies the digest; on ErrCorrupt the temp file is discarded and
	// nothing reaches destPath.
	if err := s.content.Get(ctx, entry.Digest, tmp, decrypt); err != nil {
		return false, fmt.Errorf("fetching %s: %w", entry.LogicalPath, err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return false, fmt.Errorf("renaming into place: %w", err)
	}
	success = true
	s.recordBlob(entry.Digest, entry.SizeBytes)
	return false, nil
}
