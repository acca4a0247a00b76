// Package detect maps git commit ranges to the analysis modules they affect.
// It shells out to the git CLI rather than reimplementing diff semantics.
package detect

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path"
	"sort"
	"strings"

	"pcc-go/internal/model"
	"pcc-go/internal/pcc"
)

// DefaultModuleMapping is the built-in rule set mapping changed file paths to
// the analysis modules they affect.
var DefaultModuleMapping = map[string][]string{
	"tech_stack": {
		"package.json",
		"requirements.txt",
		"go.mod",
		"Cargo.toml",
		"pom.xml",
		"build.gradle",
		"Dockerfile",
		"docker-compose.yml",
	},
	"data_model": {
		"schema.prisma",
		"models.py",
		"schema.graphql",
		"*.proto",
		"migrations/",
	},
	"api": {
		"src/api/",
		"src/routes/",
		"src/controllers/",
		"api/",
		"routes/",
	},
	"security": {
		"src/auth/",
		"src/security/",
		"auth/",
		"security/",
	},
	"domain": {
		"src/",
		"lib/",
	},
}

// GitDetector implements pcc.ChangeDetector by running git diff in the
// workspace repository.
type GitDetector struct {
	mapping map[string][]string
	logger  pcc.Logger
}

var _ pcc.ChangeDetector = (*GitDetector)(nil)

// NewGitDetector creates a GitDetector. A nil or empty mapping selects
// DefaultModuleMapping; a nil logger disables logging.
func NewGitDetector(mapping map[string][]string, logger pcc.Logger) *GitDetector {
	if len(mapping) == 0 {
		mapping = DefaultModuleMapping
	}
	if logger == nil {
		logger = pcc.NewNopLogger()
	}
	return &GitDetector{mapping: mapping, logger: logger}
}

// DetectChanges diffs base..current in the workspace repository and reports
// which files changed and which modules that touches.
func (d *GitDetector) DetectChanges(ctx context.Context, workspace, base, current string) (*model.ChangeReport, error) {
	added, modified, deleted, err := d.diffNameStatus(ctx, workspace, base, current)
	if err != nil {
		return nil, err
	}

	affected := map[string]bool{}
	all := make([]string, 0, len(added)+len(modified)+len(deleted))
	all = append(all, added...)
	all = append(all, modified...)
	all = append(all, deleted...)
	for _, f := range all {
		for _, m := range d.matchModules(f) {
			affected[m] = true
		}
	}

	affectedList := make([]string, 0, len(affected))
	for m := range affected {
		affectedList = append(affectedList, m)
	}
	sort.Strings(affectedList)

	report := &model.ChangeReport{
		BaseCommit:        base,
		CurrentCommit:     current,
		AffectedModules:   affectedList,
		AddedFiles:        added,
		ModifiedFiles:     modified,
		DeletedFiles:      deleted,
		EstimatedImpact:   d.estimateImpact(affected, all),
		TotalChangedFiles: len(all),
	}

	d.logger.Info("detected changes",
		"base", shortSHA(base), "current", shortSHA(current),
		"changed", report.TotalChangedFiles, "modules", strings.Join(affectedList, ","))
	return report, nil
}

// diffNameStatus runs git diff --name-status base..current and buckets the
// results. Renames (R*) count as modifications of the new path.
func (d *GitDetector) diffNameStatus(ctx context.Context, workspace, base, current string) (added, modified, deleted []string, err error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--name-status", base+".."+current)
	cmd.Dir = workspace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, nil, nil, fmt.Errorf("git diff %s..%s: %w: %s", base, current, err, strings.TrimSpace(stderr.String()))
	}

	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		status, filePath := parts[0], parts[1]
		switch {
		case status == "A":
			added = append(added, filePath)
		case status == "M":
			modified = append(modified, filePath)
		case status == "D":
			deleted = append(deleted, filePath)
		case strings.HasPrefix(status, "R"):
			// Format: R100\told_path\tnew_path
			if i := strings.Index(filePath, "\t"); i >= 0 {
				modified = append(modified, filePath[i+1:])
			} else {
				modified = append(modified, filePath)
			}
		}
	}
	return added, modified, deleted, nil
}

// matchModules returns the modules whose patterns match the given file path.
func (d *GitDetector) matchModules(filePath string) []string {
	var matched []string
	for module, patterns := range d.mapping {
		for _, pattern := range patterns {
			if matchesPattern(filePath, pattern) {
				matched = append(matched, module)
				break
			}
		}
	}
	return matched
}

// matchesPattern applies the mapping rule syntax:
// bare names match the basename, trailing-slash patterns match directory
// prefixes anywhere in the path, '*' patterns glob against the full path or
// the basename, and anything else matches as a substring.
func matchesPattern(filePath, pattern string) bool {
	if !strings.Contains(pattern, "/") && !strings.Contains(pattern, "*") {
		return path.Base(filePath) == pattern
	}

	if strings.HasSuffix(pattern, "/") {
		return strings.HasPrefix(filePath, pattern) || strings.Contains(filePath, "/"+pattern)
	}

	if strings.Contains(pattern, "*") {
		if ok, _ := path.Match(pattern, filePath); ok {
			return true
		}
		ok, _ := path.Match(pattern, path.Base(filePath))
		return ok
	}

	return strings.Contains(filePath, pattern)
}

// estimateImpact grades every configured module by how many changed files
// touch it: none (0), low (1-2), medium (3-5), high (>5).
func (d *GitDetector) estimateImpact(affected map[string]bool, changedFiles []string) map[string]string {
	impact := make(map[string]string, len(d.mapping))
	for module := range d.mapping {
		if !affected[module] {
			impact[module] = "none"
			continue
		}

		count := 0
		for _, f := range changedFiles {
			for _, m := range d.matchModules(f) {
				if m == module {
					count++
					break
				}
			}
		}

		switch {
		case count == 0:
			impact[module] = "none"
		case count <= 2:
			impact[module] = "low"
		case count <= 5:
			impact[module] = "medium"
		default:
			impact[module] = "high"
		}
	}
	return impact
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
