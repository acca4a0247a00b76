package detect

import (
	"context"
	"testing"
)

func TestCaptureGitInfo(t *testing.T) {
	dir, base, current := gitRepo(t)
	ctx := context.Background()

	info, err := CaptureGitInfo(ctx, dir, "HEAD")
	if err != nil {
		t.Fatalf("CaptureGitInfo() error: %v", err)
	}
	if info.CommitSHA != current {
		t.Errorf("CommitSHA = %q, want %q", info.CommitSHA, current)
	}
	if info.ParentCommit != base {
		t.Errorf("ParentCommit = %q, want %q", info.ParentCommit, base)
	}
	if info.Author != "test <test@example.com>" {
		t.Errorf("Author = %q, want test <test@example.com>", info.Author)
	}
	if info.Message != "second" {
		t.Errorf("Message = %q, want second", info.Message)
	}
	if info.CommittedAt.IsZero() {
		t.Error("CommittedAt is zero")
	}
}

func TestCaptureGitInfo_RootCommit(t *testing.T) {
	dir, base, _ := gitRepo(t)

	info, err := CaptureGitInfo(context.Background(), dir, base)
	if err != nil {
		t.Fatalf("CaptureGitInfo() error: %v", err)
	}
	if info.CommitSHA != base {
		t.Errorf("CommitSHA = %q, want %q", info.CommitSHA, base)
	}
	if info.ParentCommit != "" {
		t.Errorf("ParentCommit = %q for root commit, want empty", info.ParentCommit)
	}
}

func TestCaptureGitInfo_UnknownRev(t *testing.T) {
	dir, _, _ := gitRepo(t)

	if _, err := CaptureGitInfo(context.Background(), dir, "doesnotexist"); err == nil {
		t.Error("CaptureGitInfo() accepted an unknown revision")
	}
}

func TestMergeBase(t *testing.T) {
	dir, base, current := gitRepo(t)

	got, err := MergeBase(context.Background(), dir, base, current)
	if err != nil {
		t.Fatalf("MergeBase() error: %v", err)
	}
	if got != base {
		t.Errorf("MergeBase() = %q, want ancestor %q", got, base)
	}
}

func TestCurrentBranch(t *testing.T) {
	dir, _, _ := gitRepo(t)

	branch, err := CurrentBranch(context.Background(), dir)
	if err != nil {
		t.Fatalf("CurrentBranch() error: %v", err)
	}
	if branch == "" || branch == "HEAD" {
		t.Errorf("CurrentBranch() = %q, want a branch name", branch)
	}
}
