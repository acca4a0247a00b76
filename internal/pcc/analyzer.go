package pcc

import (
	"context"
	"sync"
	"time"
)

// ModuleAnalyzer analyzes one module at a time. Wrap one in a
// ParallelAnalyzer to get the batch Analyzer contract with bounded fan-out.
type ModuleAnalyzer interface {
	AnalyzeModule(ctx context.Context, workspace, module string) ([]byte, error)
}

// ModuleAnalyzerFunc adapts a function to the ModuleAnalyzer interface.
type ModuleAnalyzerFunc func(ctx context.Context, workspace, module string) ([]byte, error)

func (f ModuleAnalyzerFunc) AnalyzeModule(ctx context.Context, workspace, module string) ([]byte, error) {
	return f(ctx, workspace, module)
}

// ParallelAnalyzer runs a per-module analyzer across a bounded worker pool.
// Per-module errors are captured in the result map, never failing the batch.
type ParallelAnalyzer struct {
	inner   ModuleAnalyzer
	workers int
	timeout time.Duration // per module; 0 = no per-module timeout
}

// NewParallelAnalyzer wraps a per-module analyzer. workers <= 0 selects
// DefaultWorkers.
func NewParallelAnalyzer(inner ModuleAnalyzer, workers int, timeout time.Duration) *ParallelAnalyzer {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &ParallelAnalyzer{inner: inner, workers: workers, timeout: timeout}
}

// Analyze fans the requested modules out over the pool and collects one
// result per module.
func (p *ParallelAnalyzer) Analyze(ctx context.Context, workspace string, modules []string) (map[string]ModuleResult, error) {
	results := make(map[string]ModuleResult, len(modules))
	var mu sync.Mutex

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	for _, module := range modules {
		wg.Add(1)
		go func(module string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			runCtx := ctx
			if p.timeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(ctx, p.timeout)
				defer cancel()
			}

			started := time.Now()
			content, err := p.inner.AnalyzeModule(runCtx, workspace, module)
			mu.Lock()
			results[module] = ModuleResult{Content: content, Err: err, Duration: time.Since(started)}
			mu.Unlock()
		}(module)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

var _ Analyzer = (*ParallelAnalyzer)(nil)
