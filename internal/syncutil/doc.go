// Package syncutil provides synchronization utilities for vigil.
//
// This package provides helpers that complement the standard sync package,
// offering cleaner APIs for common concurrency patterns.
//
// # WaitGroup Helper
//
// The Go function provides a cleaner way to spawn goroutines tracked by a WaitGroup:
//
//	var wg sync.WaitGroup
//	syncutil.Go(&wg, func() {
//	    // work
//	})
//	wg.Wait()
//
// # Bounded Group
//
// Group caps the number of goroutines in flight, which is what health-check
// fan-out wants: every check runs concurrently, but not all at once.
//
//	g := syncutil.NewGroup(8)
//	for _, job := range jobs {
//	    g.Go(job)
//	}
//	g.Wait()
package syncutil
