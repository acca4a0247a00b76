package detect

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		pattern string
		want    bool
	}{
		{"bare name matches basename", "backend/go.mod", "go.mod", true},
		{"bare name exact", "go.mod", "go.mod", true},
		{"bare name no match", "go.sum", "go.mod", false},
		{"dir prefix at root", "api/users.go", "api/", true},
		{"dir prefix nested", "services/api/users.go", "api/", true},
		{"dir prefix not a dir", "api.go", "api/", false},
		{"dir prefix partial name", "rapid/users.go", "api/", false},
		{"glob on basename", "protos/user.proto", "*.proto", true},
		{"glob no match", "protos/user.go", "*.proto", false},
		{"substring with slash", "backend/src/auth/login.go", "src/auth/", true},
		{"substring no match", "backend/src/payments/charge.go", "src/auth/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesPattern(tt.path, tt.pattern); got != tt.want {
				t.Errorf("matchesPattern(%q, %q) = %v, want %v", tt.path, tt.pattern, got, tt.want)
			}
		})
	}
}

func TestMatchModules(t *testing.T) {
	d := NewGitDetector(nil, nil)

	tests := []struct {
		path string
		want []string
	}{
		{"go.mod", []string{"tech_stack"}},
		{"migrations/0001_init.sql", []string{"data_model"}},
		{"src/api/users.go", []string{"api", "domain"}},
		{"src/auth/login.go", []string{"domain", "security"}},
		{"README.md", nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := d.matchModules(tt.path)
			// Map iteration order varies; compare as sets.
			gotSet := map[string]bool{}
			for _, m := range got {
				gotSet[m] = true
			}
			wantSet := map[string]bool{}
			for _, m := range tt.want {
				wantSet[m] = true
			}
			if !reflect.DeepEqual(gotSet, wantSet) {
				t.Errorf("matchModules(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestEstimateImpact(t *testing.T) {
	mapping := map[string][]string{
		"api": {"api/"},
	}
	d := NewGitDetector(mapping, nil)

	tests := []struct {
		name  string
		files []string
		want  string
	}{
		{"none", nil, "none"},
		{"low", []string{"api/a.go", "api/b.go"}, "low"},
		{"medium", []string{"api/a.go", "api/b.go", "api/c.go", "api/d.go", "api/e.go"}, "medium"},
		{"high", []string{"api/a.go", "api/b.go", "api/c.go", "api/d.go", "api/e.go", "api/f.go"}, "high"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			affected := map[string]bool{}
			if len(tt.files) > 0 {
				affected["api"] = true
			}
			impact := d.estimateImpact(affected, tt.files)
			if impact["api"] != tt.want {
				t.Errorf("impact = %q for %d files, want %q", impact["api"], len(tt.files), tt.want)
			}
		})
	}
}

// gitRepo builds a throwaway repository with two commits: the base commit
// adds go.mod and src/api/users.go, the second modifies the API file, adds an
// auth file and deletes go.mod.
func gitRepo(t *testing.T) (dir, base, current string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir = t.TempDir()

	run := func(args ...string) string {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out
		if err := cmd.Run(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out.String())
		}
		return out.String()
	}
	write := func(rel, content string) {
		t.Helper()
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	run("init", "-q")
	write("go.mod", "module example.com/app\n")
	write("src/api/users.go", "package api\n")
	run("add", ".")
	run("commit", "-q", "-m", "base")
	base = run("rev-parse", "HEAD")

	write("src/api/users.go", "package api\n\n// changed\n")
	write("src/auth/login.go", "package auth\n")
	run("rm", "-q", "go.mod")
	run("add", ".")
	run("commit", "-q", "-m", "second")
	current = run("rev-parse", "HEAD")

	return dir, base[:len(base)-1], current[:len(current)-1]
}

func TestGitDetector_DetectChanges(t *testing.T) {
	dir, base, current := gitRepo(t)
	d := NewGitDetector(nil, nil)

	report, err := d.DetectChanges(context.Background(), dir, base, current)
	if err != nil {
		t.Fatalf("DetectChanges() error: %v", err)
	}

	if report.BaseCommit != base || report.CurrentCommit != current {
		t.Errorf("commit range = %s..%s, want %s..%s", report.BaseCommit, report.CurrentCommit, base, current)
	}
	if report.TotalChangedFiles != 3 {
		t.Errorf("TotalChangedFiles = %d, want 3", report.TotalChangedFiles)
	}
	if !reflect.DeepEqual(report.AddedFiles, []string{"src/auth/login.go"}) {
		t.Errorf("AddedFiles = %v, want [src/auth/login.go]", report.AddedFiles)
	}
	if !reflect.DeepEqual(report.ModifiedFiles, []string{"src/api/users.go"}) {
		t.Errorf("ModifiedFiles = %v, want [src/api/users.go]", report.ModifiedFiles)
	}
	if !reflect.DeepEqual(report.DeletedFiles, []string{"go.mod"}) {
		t.Errorf("DeletedFiles = %v, want [go.mod]", report.DeletedFiles)
	}

	// Sorted module list: api (src/api/), domain (src/), security (src/auth/),
	// tech_stack (go.mod deleted).
	want := []string{"api", "domain", "security", "tech_stack"}
	if !reflect.DeepEqual(report.AffectedModules, want) {
		t.Errorf("AffectedModules = %v, want %v", report.AffectedModules, want)
	}

	if report.EstimatedImpact["data_model"] != "none" {
		t.Errorf("data_model impact = %q, want none", report.EstimatedImpact["data_model"])
	}
	if report.EstimatedImpact["domain"] != "low" {
		t.Errorf("domain impact = %q, want low (2 files under src/)", report.EstimatedImpact["domain"])
	}
}

func TestGitDetector_BadRange(t *testing.T) {
	dir, _, _ := gitRepo(t)
	d := NewGitDetector(nil, nil)

	if _, err := d.DetectChanges(context.Background(), dir, "doesnotexist", "HEAD"); err == nil {
		t.Error("DetectChanges() accepted an unknown base commit")
	}
}
