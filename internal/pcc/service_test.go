package pcc_test

import (
	"context"
	"testing"
)

func TestService_RecordFork(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	if err := f.svc.RecordFork(ctx, "proj-1", "feature/x", "main", "base1", "alice"); err != nil {
		t.Fatalf("RecordFork() error: %v", err)
	}

	fork, err := f.meta.GetForkInfo(ctx, "proj-1", "feature/x")
	if err != nil {
		t.Fatalf("GetForkInfo() error: %v", err)
	}
	if fork.BaseBranch != "main" || fork.BaseCommit != "base1" || fork.CreatedBy != "alice" {
		t.Errorf("fork = %+v, want main/base1 by alice", fork)
	}
	if !fork.CreatedAt.Equal(f.clock.Now()) {
		t.Errorf("CreatedAt = %v, want clock time %v", fork.CreatedAt, f.clock.Now())
	}

	// Re-recording with a different base is a silent no-op.
	if err := f.svc.RecordFork(ctx, "proj-1", "feature/x", "develop", "other9", "bob"); err != nil {
		t.Fatalf("RecordFork() second call error: %v", err)
	}
	fork, err = f.meta.GetForkInfo(ctx, "proj-1", "feature/x")
	if err != nil {
		t.Fatalf("GetForkInfo() error: %v", err)
	}
	if fork.BaseBranch != "main" {
		t.Errorf("BaseBranch = %q after re-record, want main", fork.BaseBranch)
	}
}

func TestService_RecordForkValidation(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	tests := []struct {
		name                                    string
		project, branch, baseBranch, baseCommit string
	}{
		{"missing project", "", "feature/x", "main", "base1"},
		{"missing branch", "proj-1", "", "main", "base1"},
		{"missing base branch", "proj-1", "feature/x", "", "base1"},
		{"missing base commit", "proj-1", "feature/x", "main", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.svc.RecordFork(ctx, tt.project, tt.branch, tt.baseBranch, tt.baseCommit, ""); err == nil {
				t.Error("RecordFork() accepted incomplete arguments")
			}
		})
	}
}
