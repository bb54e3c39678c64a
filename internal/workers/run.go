package workers

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
)

// Report summarises one Run.
type Report struct {
	Processed int
	Failed    int
	Errors    []error
	// SourceErr is set when the sequence itself failed; items after the
	// failure were not processed.
	SourceErr error
}

// Run processes items with concurrency workers taken from pool. Workers pull
// from one shared iterator, so the sequence is consumed once and lazily, in
// no particular processing order. An item error is logged and recorded without
// stopping the others. Run returns after every worker has drained the
// sequence or ctx is canceled.
func Run[T any](
	ctx context.Context,
	pool *Pool,
	logger *slog.Logger,
	items iter.Seq2[T, error],
	process func(context.Context, T) error,
	concurrency int,
) Report {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	next, stop := iter.Pull2(items)
	defer stop()

	var (
		mu     sync.Mutex // guards next and report
		report Report
		wg     sync.WaitGroup
	)

	pull := func() (T, bool) {
		mu.Lock()
		defer mu.Unlock()

		var zero T
		if ctx.Err() != nil || report.SourceErr != nil {
			return zero, false
		}
		item, err, ok := next()
		if !ok {
			return zero, false
		}
		if err != nil {
			report.SourceErr = err
			logger.Error("Item source failed, stopping workers", "error", err)
			return zero, false
		}
		return item, true
	}

	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, err)
			return
		}
		report.Processed++
	}

	worker := func() {
		defer wg.Done()
		for {
			item, ok := pull()
			if !ok {
				return
			}
			err := process(ctx, item)
			if err != nil {
				logger.Warn("Failed to process item", "error", err)
			}
			record(err)
		}
	}

	submitted := 0
	for range concurrency {
		wg.Add(1)
		if err := pool.Submit(worker); err != nil {
			wg.Done()
			logger.Error("Failed to submit worker", "error", err)
			continue
		}
		submitted++
	}
	if submitted == 0 {
		report.SourceErr = fmt.Errorf("no worker could be started")
	}

	wg.Wait()
	return report
}
