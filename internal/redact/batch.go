package redact

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// defaultBatchConcurrency bounds parallel pipeline runs when the caller
// doesn't specify a limit.
const defaultBatchConcurrency = 4

// BatchItem is one independent piece of text to redact.
type BatchItem struct {
	Text    string
	Context Context
}

// ProcessBatch runs the pipeline over independent items with bounded
// concurrency. Scanning and redaction stay synchronous per item;
// parallelism is applied here, across items, never inside a run. Results
// are positionally aligned with items.
func (p *Pipeline) ProcessBatch(ctx context.Context, items []BatchItem, concurrency int) []Result {
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}

	results := make([]Result, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range items {
		i := i
		g.Go(func() error {
			results[i] = p.Process(gctx, items[i].Text, items[i].Context)
			return nil
		})
	}

	// Workers never return errors; Wait only fences completion.
	_ = g.Wait()
	return results
}
