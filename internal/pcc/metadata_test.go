package pcc_test

import (
	"context"
	"testing"
	"time"

	"pcc-go/internal/model"
	"pcc-go/internal/pcc"
	"pcc-go/internal/store"
)

func newMetadataStore() (*pcc.MetadataStore, *store.MemoryStore) {
	mem := store.NewMemoryStore("test")
	return pcc.NewMetadataStore(mem), mem
}

func snapshot(project, branch, commit string, created time.Time) *model.SnapshotMetadata {
	return &model.SnapshotMetadata{
		SchemaVersion: model.SchemaVersion,
		ProjectID:     project,
		Branch:        branch,
		CommitSHA:     commit,
		AnalysisKind:  model.AnalysisFull,
		FileEntries: map[string]model.FileEntry{
			"architecture.md": {
				LogicalPath: "architecture.md",
				Digest:      "sha256-0000000000000000000000000000000000000000000000000000000000000000",
				SizeBytes:   42,
				Provenance:  model.ProvenanceNew,
			},
		},
		CreatedAt: created,
	}
}

func TestMetadataStore_SnapshotRoundtrip(t *testing.T) {
	ctx := context.Background()
	ms, _ := newMetadataStore()

	want := snapshot("proj-1", "main", "abc123", time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	if err := ms.PutSnapshot(ctx, want); err != nil {
		t.Fatalf("PutSnapshot() error: %v", err)
	}

	got, err := ms.GetSnapshot(ctx, "proj-1", "main", "abc123")
	if err != nil {
		t.Fatalf("GetSnapshot() error: %v", err)
	}
	if got.CommitSHA != want.CommitSHA || got.Branch != want.Branch {
		t.Errorf("GetSnapshot() = %s/%s, want %s/%s", got.Branch, got.CommitSHA, want.Branch, want.CommitSHA)
	}
	if len(got.FileEntries) != 1 {
		t.Errorf("FileEntries = %d entries, want 1", len(got.FileEntries))
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func TestMetadataStore_SnapshotMissing(t *testing.T) {
	ctx := context.Background()
	ms, _ := newMetadataStore()

	_, err := ms.GetSnapshot(ctx, "proj-1", "main", "missing")
	if !pcc.IsNotFound(err) {
		t.Errorf("GetSnapshot() error = %v, want ErrNotFound", err)
	}
}

func TestMetadataStore_SnapshotRequiresIdentity(t *testing.T) {
	ctx := context.Background()
	ms, _ := newMetadataStore()

	tests := []struct {
		name string
		meta *model.SnapshotMetadata
	}{
		{"missing project", &model.SnapshotMetadata{Branch: "main", CommitSHA: "abc"}},
		{"missing branch", &model.SnapshotMetadata{ProjectID: "p", CommitSHA: "abc"}},
		{"missing commit", &model.SnapshotMetadata{ProjectID: "p", Branch: "main"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ms.PutSnapshot(ctx, tt.meta); err == nil {
				t.Error("PutSnapshot() accepted incomplete metadata")
			}
		})
	}
}

func TestMetadataStore_SetBranchLatest(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		first      model.BranchLatest
		second     model.BranchLatest
		wantErr    bool
		wantCommit string
	}{
		{
			name:       "newer commit replaces older",
			first:      model.BranchLatest{CommitSHA: "aaa", CreatedAt: t0},
			second:     model.BranchLatest{CommitSHA: "bbb", CreatedAt: t0.Add(time.Hour)},
			wantCommit: "bbb",
		},
		{
			name:       "same commit rewrite allowed",
			first:      model.BranchLatest{CommitSHA: "aaa", CreatedAt: t0.Add(time.Hour)},
			second:     model.BranchLatest{CommitSHA: "aaa", CreatedAt: t0},
			wantCommit: "aaa",
		},
		{
			name:       "stale writer rejected",
			first:      model.BranchLatest{CommitSHA: "bbb", CreatedAt: t0.Add(time.Hour)},
			second:     model.BranchLatest{CommitSHA: "aaa", CreatedAt: t0},
			wantErr:    true,
			wantCommit: "bbb",
		},
		{
			name:       "equal timestamp keeps first writer",
			first:      model.BranchLatest{CommitSHA: "bbb", CreatedAt: t0},
			second:     model.BranchLatest{CommitSHA: "aaa", CreatedAt: t0},
			wantErr:    true,
			wantCommit: "bbb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms, _ := newMetadataStore()
			if err := ms.SetBranchLatest(ctx, "proj-1", "main", tt.first); err != nil {
				t.Fatalf("SetBranchLatest(first) error: %v", err)
			}
			err := ms.SetBranchLatest(ctx, "proj-1", "main", tt.second)
			if tt.wantErr {
				if !pcc.IsConflict(err) {
					t.Errorf("SetBranchLatest(second) error = %v, want ErrConflict", err)
				}
			} else if err != nil {
				t.Fatalf("SetBranchLatest(second) error: %v", err)
			}

			latest, err := ms.GetBranchLatest(ctx, "proj-1", "main")
			if err != nil {
				t.Fatalf("GetBranchLatest() error: %v", err)
			}
			if latest.CommitSHA != tt.wantCommit {
				t.Errorf("latest = %q, want %q", latest.CommitSHA, tt.wantCommit)
			}
		})
	}
}

func TestMetadataStore_BranchLatestMissing(t *testing.T) {
	ctx := context.Background()
	ms, _ := newMetadataStore()

	_, err := ms.GetBranchLatest(ctx, "proj-1", "no-such-branch")
	if !pcc.IsNotFound(err) {
		t.Errorf("GetBranchLatest() error = %v, want ErrNotFound", err)
	}
}

func TestMetadataStore_RecordForkWriteOnce(t *testing.T) {
	ctx := context.Background()
	ms, _ := newMetadataStore()
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	first := model.BranchForkInfo{
		BaseBranch: "main",
		BaseCommit: "abc123",
		CreatedAt:  t0,
		ForkType:   model.ForkBranch,
		CreatedBy:  "alice",
	}
	if err := ms.RecordFork(ctx, "proj-1", "feature/x", first); err != nil {
		t.Fatalf("RecordFork() error: %v", err)
	}

	// Second record with different arguments is silently ignored.
	second := model.BranchForkInfo{
		BaseBranch: "develop",
		BaseCommit: "zzz999",
		CreatedAt:  t0.Add(time.Hour),
		ForkType:   model.ForkRebase,
		CreatedBy:  "bob",
	}
	if err := ms.RecordFork(ctx, "proj-1", "feature/x", second); err != nil {
		t.Fatalf("RecordFork() second call error: %v", err)
	}

	got, err := ms.GetForkInfo(ctx, "proj-1", "feature/x")
	if err != nil {
		t.Fatalf("GetForkInfo() error: %v", err)
	}
	if got.BaseBranch != "main" || got.BaseCommit != "abc123" || got.CreatedBy != "alice" {
		t.Errorf("fork info = %+v, want first writer's record", got)
	}
}

func TestMetadataStore_ForkInfoMissing(t *testing.T) {
	ctx := context.Background()
	ms, _ := newMetadataStore()

	_, err := ms.GetForkInfo(ctx, "proj-1", "main")
	if !pcc.IsNotFound(err) {
		t.Errorf("GetForkInfo() error = %v, want ErrNotFound", err)
	}
}

func TestMetadataStore_ListSnapshots(t *testing.T) {
	ctx := context.Background()
	ms, _ := newMetadataStore()
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	for i, sc := range []struct{ branch, commit string }{
		{"main", "c1"},
		{"main", "c2"},
		{"feature/x", "c3"},
	} {
		if err := ms.PutSnapshot(ctx, snapshot("proj-1", sc.branch, sc.commit, t0.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("PutSnapshot(%s) error: %v", sc.commit, err)
		}
	}
	// Latest pointers and fork records live under the same prefix but must not
	// be picked up as snapshots.
	if err := ms.SetBranchLatest(ctx, "proj-1", "main", model.BranchLatest{CommitSHA: "c2", CreatedAt: t0}); err != nil {
		t.Fatalf("SetBranchLatest() error: %v", err)
	}
	if err := ms.RecordFork(ctx, "proj-1", "feature/x", model.BranchForkInfo{BaseBranch: "main", BaseCommit: "c2"}); err != nil {
		t.Fatalf("RecordFork() error: %v", err)
	}
	// A different project is out of scope.
	if err := ms.PutSnapshot(ctx, snapshot("proj-2", "main", "other", t0)); err != nil {
		t.Fatalf("PutSnapshot(other project) error: %v", err)
	}

	snapshots, err := ms.ListSnapshots(ctx, "proj-1")
	if err != nil {
		t.Fatalf("ListSnapshots() error: %v", err)
	}
	if len(snapshots) != 3 {
		t.Fatalf("ListSnapshots() = %d snapshots, want 3", len(snapshots))
	}
	commits := map[string]bool{}
	for _, s := range snapshots {
		commits[s.CommitSHA] = true
	}
	for _, want := range []string{"c1", "c2", "c3"} {
		if !commits[want] {
			t.Errorf("ListSnapshots() missing commit %s", want)
		}
	}
}
