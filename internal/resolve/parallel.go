package resolve

import (
	"runtime"
	"sync"
	"time"
)

// WorkItem holds one input ready for resolution.
type WorkItem struct {
	Seq    int
	Text   string
	Vendor string
	Now    time.Time
}

// WorkResult holds the resolution output for a single input.
type WorkResult struct {
	Seq    int
	Result ResolutionResult
	Err    error
}

// ParallelResolve resolves work items using a pool of workers. Results
// are sent to the returned channel in arrival order, not sequence order;
// use OrderedCollect to consume in sequence order. If workers is 0,
// runtime.NumCPU() is used. Safe because Resolver.Resolve only takes the
// vendor-cache lock internally, never a lock shared with the caller.
func (r *Resolver) ParallelResolve(items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				now := item.Now
				if now.IsZero() {
					now = time.Now().UTC()
				}
				res, err := r.Resolve(item.Text, item.Vendor, now)
				results <- WorkResult{Seq: item.Seq, Result: res, Err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order,
// buffering out-of-order arrivals until their turn comes. Blocks until
// the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	return OrderedCollectWithProgress(results, 0, nil, fn)
}

// OrderedCollectWithProgress is like OrderedCollect but periodically
// calls progress with the number of inputs resolved so far. If interval
// is 0 or progress is nil, no progress reporting is done.
func OrderedCollectWithProgress(results <-chan WorkResult, interval time.Duration, progress func(int), fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	var ticker *time.Ticker
	var tickC <-chan time.Time
	if interval > 0 && progress != nil {
		ticker = time.NewTicker(interval)
		tickC = ticker.C
		defer ticker.Stop()
	}

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				for range results {
				}
				return err
			}
		}

		if tickC != nil {
			select {
			case <-tickC:
				progress(nextSeq)
			default:
			}
		}
	}

	return nil
}

// ResolveBatch resolves every input in texts, in order, using a worker
// pool, and returns results in the same order as the inputs.
func (r *Resolver) ResolveBatch(texts []string, vendor string, now time.Time, workers int) ([]ResolutionResult, error) {
	items := make(chan WorkItem, len(texts))
	for i, t := range texts {
		items <- WorkItem{Seq: i, Text: t, Vendor: vendor, Now: now}
	}
	close(items)

	out := make([]ResolutionResult, len(texts))
	results := r.ParallelResolve(items, workers)
	err := OrderedCollect(results, func(wr WorkResult) error {
		out[wr.Seq] = wr.Result
		return wr.Err
	})
	return out, err
}
