package checker

import (
	"context"
	"sync"

	"indexwatch/internal/models"
)

// DefaultConcurrency is the chunk size used when none is configured.
const DefaultConcurrency = 5

// ProgressFunc is called after every individual probe. Calls are serialized
// and completed increases by one each time.
type ProgressFunc func(completed, total int)

// RunBatch probes targets in consecutive chunks of size concurrency. Each
// chunk runs concurrently and is awaited before the next one starts, so at
// most concurrency requests are in flight. Every target is probed exactly
// once; the returned map holds one outcome per target id.
func RunBatch(ctx context.Context, prober URLProber, targets []models.ProbeTarget, concurrency int, onProgress ProgressFunc) map[string]models.Outcome {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	total := len(targets)
	results := make(map[string]models.Outcome, total)

	var (
		progressMu sync.Mutex
		completed  int
	)
	report := func() {
		progressMu.Lock()
		defer progressMu.Unlock()
		completed++
		if onProgress != nil {
			onProgress(completed, total)
		}
	}

	for start := 0; start < total; start += concurrency {
		chunk := targets[start:min(start+concurrency, total)]
		// Each goroutine owns one slot; the map is filled after the chunk.
		outcomes := make([]models.Outcome, len(chunk))

		var wg sync.WaitGroup
		wg.Add(len(chunk))
		for i, target := range chunk {
			go func() {
				defer wg.Done()
				outcomes[i] = prober.Probe(ctx, target.URL)
				report()
			}()
		}
		wg.Wait()

		for i, target := range chunk {
			results[target.ID] = outcomes[i]
		}
	}
	return results
}
