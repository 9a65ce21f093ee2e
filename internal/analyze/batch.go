package analyze

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/predtext/internal/event"
)

// FileResult is the outcome of analyzing one log file.
type FileResult struct {
	Path     string
	Analysis *Analysis
	Err      error
}

// AnalyzeFile reads, validates and analyzes the log at path.
func AnalyzeFile(path string, opts Options) (*Analysis, error) {
	events, err := event.ReadFile(path, true)
	if err != nil {
		return nil, err
	}
	return Analyze(events, opts)
}

// AnalyzeFiles analyzes paths with at most concurrency files in flight.
// A failing file never stops the batch; its error is kept in its result.
// Results are in the order of paths.
func AnalyzeFiles(ctx context.Context, paths []string, opts Options, concurrency int) []FileResult {
	opts = opts.withDefaults()
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]FileResult, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, path := range paths {
		g.Go(func() error {
			results[i].Path = path
			if err := gCtx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			a, err := AnalyzeFile(path, opts)
			if err != nil {
				opts.Logger.Warn("analysis failed", "path", path, "error", err)
			}
			results[i].Analysis, results[i].Err = a, err
			return nil
		})
	}
	_ = g.Wait()
	return results
}
