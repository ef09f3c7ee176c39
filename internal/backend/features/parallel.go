package features

import (
	"runtime"
	"sync"
)

// parallelFor runs fn(i) for every i in [0, n) on up to GOMAXPROCS workers.
// Indices are strided across workers, so pyramid levels of very different
// sizes still spread evenly. fn must only write to state owned by index i.
func parallelFor(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	workers := min(runtime.GOMAXPROCS(0), n)
	if workers == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := w; i < n; i += workers {
				fn(i)
			}
		}()
	}
	wg.Wait()
}
