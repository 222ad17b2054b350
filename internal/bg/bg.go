// Package bg runs the bridge's deferred work, either in a background goroutine
// or inline on the calling goroutine.
//
// The create flow hands its status write-back to a Runner so that the choice
// between fire-and-forget and synchronous execution is configuration rather
// than a hidden "go func()" in the orchestrator. Neither runner retries.
package bg

import "sync"

// Runner executes fn, synchronously or asynchronously.
type Runner interface {
	Do(fn func())
}

// Sync runs fn immediately on the calling goroutine.
type Sync struct{}

// Do executes fn and returns when it completes.
func (Sync) Do(fn func()) {
	fn()
}

// Async runs each fn on its own goroutine and tracks it so callers can drain
// outstanding work before shutdown. The zero value is ready to use.
type Async struct {
	wg sync.WaitGroup
}

// Do starts fn in a new goroutine and returns immediately.
func (a *Async) Do(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// Wait blocks until every fn started by Do has returned.
func (a *Async) Wait() {
	a.wg.Wait()
}
