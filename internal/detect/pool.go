package detect

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// PoolOptions bounds one simulation pass.
type PoolOptions struct {
	// MaxParallel caps concurrently running simulations. Zero or negative
	// means 3.
	MaxParallel int

	// MaxCandidates caps how many candidates are dispatched at all; the
	// rest are skipped in document order. Zero means no cap.
	MaxCandidates int
}

// RunAll simulates action against every candidate under the parallelism
// bound. Results come back in candidate order regardless of completion
// order. When ctx expires mid-pass, RunAll returns the outcomes that
// finished and abandons the rest; in-flight simulations unwind on their own
// since every blocking step is context-aware.
func (s *Simulator) RunAll(ctx context.Context, action Action, candidates []Candidate, opts PoolOptions) []InteractionOutcome {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 3
	}
	if opts.MaxCandidates > 0 && len(candidates) > opts.MaxCandidates {
		s.Logger.Debug("capping candidates",
			zap.String("action", string(action)),
			zap.Int("total", len(candidates)),
			zap.Int("cap", opts.MaxCandidates))
		candidates = candidates[:opts.MaxCandidates]
	}
	if len(candidates) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(int64(opts.MaxParallel))
	results := make([]InteractionOutcome, len(candidates))
	done := make([]atomic.Bool, len(candidates))

	var wg sync.WaitGroup
	for i, cand := range candidates {
		wg.Add(1)
		go func(i int, cand Candidate) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)
			results[i] = s.Simulate(ctx, action, cand)
			done[i].Store(true)
		}(i, cand)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		s.Logger.Warn("simulation pass deadline hit, returning partial results",
			zap.String("action", string(action)))
		// In-flight simulations unwind promptly once the context is done,
		// surfacing as Failed outcomes the assembler drops. Draining them
		// here keeps the results slice writes ordered before the reads
		// below and leaves no goroutine behind.
		<-finished
	}

	out := make([]InteractionOutcome, 0, len(candidates))
	for i := range results {
		if done[i].Load() {
			out = append(out, results[i])
		}
	}
	return out
}
