package syncutil

import "sync"

// Go spawns a goroutine tracked by wg.
//
// Usage:
//
//	var wg sync.WaitGroup
//	syncutil.Go(&wg, func() {
//	    // work
//	})
//	wg.Wait()
func Go(wg *sync.WaitGroup, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
}

// Group runs functions concurrently with at most limit in flight.
// A limit of zero or less means unbounded.
type Group struct {
	wg  sync.WaitGroup
	sem chan struct{}
}

// NewGroup creates a Group with the given concurrency limit.
func NewGroup(limit int) *Group {
	g := &Group{}
	if limit > 0 {
		g.sem = make(chan struct{}, limit)
	}
	return g
}

// Go schedules fn, blocking while the concurrency limit is reached.
func (g *Group) Go(fn func()) {
	if g.sem != nil {
		g.sem <- struct{}{}
	}
	g.wg.Add(1)
	go func() {
		defer func() {
			if g.sem != nil {
				<-g.sem
			}
			g.wg.Done()
		}()
		fn()
	}()
}

// Wait blocks until every scheduled function has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}
