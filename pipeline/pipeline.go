// Package pipeline provides the data-parallel loops used by the solver.
//
// Work is split into contiguous chunks, one goroutine per worker. There are no
// suspension points inside a chunk: every call returns once all the work items
// have been processed.
package pipeline

import "sync"

// DefaultWorkers is used when a caller asks for less than one worker.
const DefaultWorkers = 1

// MinChunkSize below which a loop runs on the calling goroutine.
const MinChunkSize = 64

// Task runs fn on every element of data, split across workersCount goroutines.
func Task[T any](workersCount int, data []T, fn func(data T)) {
	For(workersCount, len(data), func(i int) {
		fn(data[i])
	})
}

// For runs fn(i) for i in [0, n), split across workersCount goroutines.
func For(workersCount int, n int, fn func(i int)) {
	Range(workersCount, 0, n, fn)
}

// Range runs fn(i) for i in [start, end), split across workersCount goroutines.
func Range(workersCount int, start, end int, fn func(i int)) {
	dataSize := end - start
	if dataSize <= 0 {
		return
	}
	workersCount = max(DefaultWorkers, workersCount)
	if workersCount == 1 || dataSize < MinChunkSize {
		for i := start; i < end; i++ {
			fn(i)
		}
		return
	}

	chunkSize := (dataSize + workersCount - 1) / workersCount
	chunkSize = max(chunkSize, MinChunkSize/2)

	var wg sync.WaitGroup
	for chunkStart := start; chunkStart < end; chunkStart += chunkSize {
		wg.Add(1)
		go func(from, to int) {
			defer wg.Done()
			for i := from; i < to; i++ {
				fn(i)
			}
		}(chunkStart, min(chunkStart+chunkSize, end))
	}
	wg.Wait()
}

// ForColors walks the color runs described by offsets sequentially: color c
// covers [offsets[c], offsets[c+1]). Items of one color run concurrently.
func ForColors(workersCount int, offsets []int, fn func(i int)) {
	for c := 0; c+1 < len(offsets); c++ {
		Range(workersCount, offsets[c], offsets[c+1], fn)
	}
}
