package testutil

import (
	"context"
	"fmt"
	"sync"

	"pcc-go/internal/model"
	"pcc-go/internal/pcc"
)

// FakeDetector implements pcc.ChangeDetector, returning a canned report.
type FakeDetector struct {
	Report *model.ChangeReport
	Err    error

	mu    sync.Mutex
	calls int
}

func (d *FakeDetector) DetectChanges(_ context.Context, _, base, current string) (*model.ChangeReport, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()

	if d.Err != nil {
		return nil, d.Err
	}
	if d.Report == nil {
		return &model.ChangeReport{BaseCommit: base, CurrentCommit: current}, nil
	}
	return d.Report, nil
}

func (d *FakeDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

var _ pcc.ChangeDetector = (*FakeDetector)(nil)

// FakeAnalyzer implements pcc.Analyzer with per-module canned output.
// Modules listed in FailModules return an error result; modules absent from
// Content and FailModules return generated placeholder content.
type FakeAnalyzer struct {
	Content     map[string][]byte
	FailModules map[string]bool

	mu       sync.Mutex
	analyzed []string
}

func (a *FakeAnalyzer) Analyze(_ context.Context, _ string, modules []string) (map[string]pcc.ModuleResult, error) {
	a.mu.Lock()
	a.analyzed = append(a.analyzed, modules...)
	a.mu.Unlock()

	results := make(map[string]pcc.ModuleResult, len(modules))
	for _, m := range modules {
		if a.FailModules[m] {
			results[m] = pcc.ModuleResult{Err: fmt.Errorf("analysis of %s failed", m)}
			continue
		}
		content, ok := a.Content[m]
		if !ok {
			content = []byte("# " + m + "\nanalysis output for " + m + "\n")
		}
		results[m] = pcc.ModuleResult{Content: content}
	}
	return results, nil
}

// Analyzed returns every module passed to Analyze, in call order.
func (a *FakeAnalyzer) Analyzed() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.analyzed...)
}

var _ pcc.Analyzer = (*FakeAnalyzer)(nil)

// FakeScanner implements pcc.WorkspaceScanner with canned tree signatures
// keyed by directory.
type FakeScanner struct {
	Trees map[string]model.TreeSignature
	Err   error
}

func (s *FakeScanner) ScanTree(dir string) (model.TreeSignature, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	sig, ok := s.Trees[dir]
	if !ok {
		return model.TreeSignature{}, nil
	}
	return sig, nil
}

var _ pcc.WorkspaceScanner = (*FakeScanner)(nil)
