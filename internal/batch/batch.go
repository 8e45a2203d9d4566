// Package batch fans page-level work out across a bounded set of workers and
// merges results by page index, tolerating partial failure.
package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultConcurrency is the number of pages processed concurrently within a
// batch.
const DefaultConcurrency = 3

// DefaultSuccessRatio is the fraction of pages that must produce usable text
// for a batch to be accepted rather than escalated whole.
const DefaultSuccessRatio = 0.7

// PageMarker renders the deterministic separator inserted between
// concatenated pages.
func PageMarker(page int) string {
	return fmt.Sprintf("--- PAGE %d ---", page)
}

// Run splits items into batches of size concurrency, processes each batch's
// items concurrently and batches sequentially, and returns results in the
// original order regardless of completion order. A page whose fn call fails
// is recorded as a nil slot rather than aborting the batch; each worker owns
// its page's result slot, so no locking is needed on the slice.
func Run[T any](ctx context.Context, logger *logrus.Logger, concurrency int, items []string, fn func(ctx context.Context, index int, item string) (*T, error)) []*T {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]*T, len(items))

	for start := 0; start < len(items); start += concurrency {
		end := min(start+concurrency, len(items))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			index := i
			wg.Go(func() {
				result, err := fn(ctx, index, items[index])
				if err != nil {
					logger.WithError(err).WithField("page", index+1).Warn("Page processing failed, recording placeholder")
					return
				}
				results[index] = result
			})
		}
		wg.Wait()
	}

	return results
}

// UsableRatio reports the fraction of non-nil slots.
func UsableRatio[T any](slots []*T) float64 {
	if len(slots) == 0 {
		return 0
	}
	usable := 0
	for _, slot := range slots {
		if slot != nil {
			usable++
		}
	}
	return float64(usable) / float64(len(slots))
}
