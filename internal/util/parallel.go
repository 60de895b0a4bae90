// Package util holds small concurrency helpers shared by the binaries.
package util

import (
	"log/slog"
	"runtime"
	"sync"
)

// ParallelFor runs fn for every index in [0, n), spread over GOMAXPROCS
// workers. Small batches run inline. A panicking fn is logged and does not
// stop the remaining indexes.
func ParallelFor(n int, fn func(int)) {
	if n <= 0 {
		return
	}

	const parallelThreshold = 8

	run := func(i int) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("ParallelFor worker panic", "index", i, "panic", r)
			}
		}()
		fn(i)
	}

	if n < parallelThreshold {
		for i := 0; i < n; i++ {
			run(i)
		}
		return
	}

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	jobs := make(chan int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				run(idx)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}
