package discord

import (
	"context"
	"sync"
)

// inflight counts running event handlers. Once draining starts no new
// handler is admitted, so Add never races Wait.
type inflight struct {
	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
}

func (f *inflight) enter() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.draining {
		return false
	}
	f.wg.Add(1)
	return true
}

func (f *inflight) leave() {
	f.wg.Done()
}

// wait stops admitting handlers and blocks until the running ones return
// or ctx ends
func (f *inflight) wait(ctx context.Context) error {
	f.mu.Lock()
	f.draining = true
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
