// Package parallel splits index ranges across CPU cores. Vectorized image
// filters use it to process rows of a plane concurrently; every worker
// writes a disjoint range so no locking is needed.
package parallel

import (
	"runtime"
	"sync"
)

// DefaultThreshold is the number of items below which work stays on the
// calling goroutine.
const DefaultThreshold = 64

// Parallelize divides [0, items) into contiguous chunks, one per CPU core,
// and calls fn(start, end) for each chunk concurrently. It returns once
// every chunk has finished.
func Parallelize(items int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn(0, items) sequentially when items does not
// exceed threshold and falls back to Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// Rows applies fn to every row index in [0, rows), in parallel for planes
// taller than DefaultThreshold.
func Rows(rows int, fn func(row int)) {
	ParallelizeWithThreshold(rows, DefaultThreshold, func(start, end int) {
		for r := start; r < end; r++ {
			fn(r)
		}
	})
}
