package pipeline

import (
	"context"

	"github.com/scholastiq/questpipe/pkg/prompt"
	"golang.org/x/sync/errgroup"
)

// BatchResult pairs one batch item's run with its error. A failed item keeps
// its partial run; it never cancels its siblings.
type BatchResult struct {
	Run *Run
	Err error
}

// RunBatch executes one pipeline run per context with at most maxParallel
// in flight. Results are returned in input order, each carrying its own
// error. The batch itself only fails on context cancellation.
func RunBatch(ctx context.Context, runner *Runner, contexts []prompt.Context, maxParallel int) ([]BatchResult, error) {
	if maxParallel <= 0 {
		maxParallel = 3
	}

	results := make([]BatchResult, len(contexts))

	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, pctx := range contexts {
		g.Go(func() error {
			run, err := runner.Run(ctx, pctx)
			results[i] = BatchResult{Run: run, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	return results, ctx.Err()
}
