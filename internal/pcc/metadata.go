package pcc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"pcc-go/internal/model"
)

// MetadataStore keeps snapshot manifests, branch-latest pointers, and fork
// records as JSON documents inside the blob namespace. Snapshot records are
// append-only by commit; the only mutable documents are the per-branch
// latest.json pointer and the write-once parent_branch.json.
type MetadataStore struct {
	blobs BlobStore

	// Serializes latest-pointer read-check-write cycles within this process.
	// Across processes the backends give last-writer-wins; the newer-commit
	// check below keeps a stale writer from clobbering a fresher pointer.
	latestMu sync.Mutex
}

// NewMetadataStore creates a MetadataStore over the given blob store.
func NewMetadataStore(blobs BlobStore) *MetadataStore {
	return &MetadataStore{blobs: blobs}
}

// PutSnapshot persists a snapshot manifest. Overwriting an existing key is
// permitted (idempotent re-runs of the same commit) but is not the normal
// path.
func (m *MetadataStore) PutSnapshot(ctx context.Context, meta *model.SnapshotMetadata) error {
	if meta.ProjectID == "" || meta.Branch == "" || meta.CommitSHA == "" {
		return fmt.Errorf("snapshot metadata requires project, branch and commit")
	}
	key := snapshotKey(meta.ProjectID, meta.Branch, meta.CommitSHA)
	if err := m.putJSON(ctx, key, meta); err != nil {
		return fmt.Errorf("persisting snapshot %s: %w", meta.CommitSHA, err)
	}
	return nil
}

// GetSnapshot loads the manifest for one (project, branch, commit).
// Returns an error wrapping ErrNotFound when no snapshot exists.
func (m *MetadataStore) GetSnapshot(ctx context.Context, projectID, branch, commitSHA string) (*model.SnapshotMetadata, error) {
	var meta model.SnapshotMetadata
	if err := m.getJSON(ctx, snapshotKey(projectID, branch, commitSHA), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// GetBranchLatest returns the latest-analyzed-commit pointer for a branch.
// Returns an error wrapping ErrNotFound when the branch has no snapshots.
func (m *MetadataStore) GetBranchLatest(ctx context.Context, projectID, branch string) (*model.BranchLatest, error) {
	var latest model.BranchLatest
	if err := m.getJSON(ctx, latestKey(projectID, branch), &latest); err != nil {
		return nil, err
	}
	return &latest, nil
}

// SetBranchLatest updates the branch's latest pointer. A write is skipped
// with ErrConflict when the stored pointer already references a record
// created at or after the incoming one, so two concurrent analyses of one
// branch cannot leave the pointer at the older commit. Rewriting the pointer
// for the same commit is always allowed.
func (m *MetadataStore) SetBranchLatest(ctx context.Context, projectID, branch string, latest model.BranchLatest) error {
	m.latestMu.Lock()
	defer m.latestMu.Unlock()

	current, err := m.GetBranchLatest(ctx, projectID, branch)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("reading current latest pointer: %w", err)
	}
	if current != nil && current.CommitSHA != latest.CommitSHA && !current.CreatedAt.Before(latest.CreatedAt) {
		return fmt.Errorf("latest pointer for %s/%s already at newer commit %s: %w",
			projectID, branch, current.CommitSHA, ErrConflict)
	}

	if err := m.putJSON(ctx, latestKey(projectID, branch), latest); err != nil {
		return fmt.Errorf("updating latest pointer: %w", err)
	}
	return nil
}

// GetForkInfo returns the fork record for a branch, or an error wrapping
// ErrNotFound if the branch has none.
func (m *MetadataStore) GetForkInfo(ctx context.Context, projectID, branch string) (*model.BranchForkInfo, error) {
	var fork model.BranchForkInfo
	if err := m.getJSON(ctx, forkKey(projectID, branch), &fork); err != nil {
		return nil, err
	}
	return &fork, nil
}

// RecordFork records the branch's base once. If fork info already exists the
// call is a silent no-op: the first writer wins, even with different
// arguments.
func (m *MetadataStore) RecordFork(ctx context.Context, projectID, branch string, fork model.BranchForkInfo) error {
	key := forkKey(projectID, branch)
	exists, err := m.blobs.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("checking fork info: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.putJSON(ctx, key, fork); err != nil {
		return fmt.Errorf("recording fork for %s/%s: %w", projectID, branch, err)
	}
	return nil
}

// ListSnapshots loads every snapshot manifest of a project, across all
// branches. Order is unspecified; callers sort as needed. The context bounds
// the scan.
func (m *MetadataStore) ListSnapshots(ctx context.Context, projectID string) ([]*model.SnapshotMetadata, error) {
	keys, err := m.blobs.List(ctx, projectPrefix(projectID))
	if err != nil {
		return nil, fmt.Errorf("listing snapshots for %s: %w", projectID, err)
	}

	var snapshots []*model.SnapshotMetadata
	for _, key := range keys {
		if !strings.HasSuffix(key, "/"+metadataFileName) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return snapshots, err
		}
		var meta model.SnapshotMetadata
		if err := m.getJSON(ctx, key, &meta); err != nil {
			if IsNotFound(err) {
				continue // deleted between list and get
			}
			return nil, err
		}
		snapshots = append(snapshots, &meta)
	}
	return snapshots, nil
}

func (m *MetadataStore) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return m.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)))
}

func (m *MetadataStore) getJSON(ctx context.Context, key string, v any) error {
	var buf bytes.Buffer
	if err := m.blobs.Get(ctx, key, &buf); err != nil {
		return err
	}
	if err := json.Unmarshal(buf.Bytes(), v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}
