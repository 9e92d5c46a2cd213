package recode

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ossyrian/runzip/internal/report"
)

// ProcessAll processes paths on up to Workers goroutines and sends every
// outcome to sink. A failing archive never stops the others.
// It returns the number of archives that failed.
func (r *Recoder) ProcessAll(ctx context.Context, paths []string, sink report.Sink) int {
	workers := r.opts.Workers
	if workers <= 0 {
		workers = 1
	}

	var failed atomic.Int32
	var g errgroup.Group
	g.SetLimit(workers)

	for _, path := range paths {
		g.Go(func() error {
			summary, err := r.Process(ctx, path)
			if err != nil {
				failed.Add(1)
				r.logger.Error("failed to process archive", "archive", path, "error", err)
				sink.Failure(path, err)
				return nil
			}
			sink.Summary(summary)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers report through sink and never return errors

	return int(failed.Load())
}
