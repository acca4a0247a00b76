package detect

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"pcc-go/internal/model"
)

// CaptureGitInfo reads commit details for the given rev (a SHA or "HEAD") from
// the repository at workspace. Only CommitSHA is required to succeed; the
// other fields are best-effort.
func CaptureGitInfo(ctx context.Context, workspace, rev string) (*model.GitInfo, error) {
	out, err := runGit(ctx, workspace, "log", "-1", "--format=%H%x09%P%x09%an <%ae>%x09%cI%x09%s", rev)
	if err != nil {
		return nil, fmt.Errorf("reading commit %s: %w", rev, err)
	}

	fields := strings.SplitN(strings.TrimSpace(out), "\t", 5)
	if len(fields) < 1 || fields[0] == "" {
		return nil, fmt.Errorf("no commit found for %s", rev)
	}

	info := &model.GitInfo{CommitSHA: fields[0]}
	if len(fields) > 1 {
		// First parent only; merge commits have more.
		parents := strings.Fields(fields[1])
		if len(parents) > 0 {
			info.ParentCommit = parents[0]
		}
	}
	if len(fields) > 2 {
		info.Author = fields[2]
	}
	if len(fields) > 3 {
		if t, err := time.Parse(time.RFC3339, fields[3]); err == nil {
			info.CommittedAt = t
		}
	}
	if len(fields) > 4 {
		info.Message = fields[4]
	}
	return info, nil
}

// CurrentBranch returns the checked-out branch name for the repository at
// workspace.
func CurrentBranch(ctx context.Context, workspace string) (string, error) {
	out, err := runGit(ctx, workspace, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("reading current branch: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// MergeBase returns the fork point between two branches.
func MergeBase(ctx context.Context, workspace, a, b string) (string, error) {
	out, err := runGit(ctx, workspace, "merge-base", a, b)
	if err != nil {
		return "", fmt.Errorf("finding merge base of %s and %s: %w", a, b, err)
	}
	return strings.TrimSpace(out), nil
}

func runGit(ctx context.Context, workspace string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = workspace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
