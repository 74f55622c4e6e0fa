package devserver

import (
	"context"
	"sync"

	"git.home.luguber.info/inful/forgepack/internal/compiler"
)

// buildStatus tracks the current build and whether a usable bundle exists.
type buildStatus struct {
	mu       sync.RWMutex
	building bool
	settled  chan struct{}
	lastErr  error
	lastGood *compiler.Report
}

func newBuildStatus() *buildStatus {
	ch := make(chan struct{})
	close(ch)
	return &buildStatus{settled: ch}
}

// begin marks a build as in flight; requests arriving now wait for end.
func (b *buildStatus) begin() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.building {
		return
	}
	b.building = true
	b.settled = make(chan struct{})
}

// end records the outcome and releases waiting requests.
func (b *buildStatus) end(report *compiler.Report, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.lastErr = err
	} else {
		b.lastErr = nil
		b.lastGood = report
	}
	if b.building {
		b.building = false
		close(b.settled)
	}
}

// wait blocks until no build is in flight or ctx ends.
func (b *buildStatus) wait(ctx context.Context) error {
	b.mu.RLock()
	ch := b.settled
	b.mu.RUnlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *buildStatus) get() (good *compiler.Report, lastErr error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastGood, b.lastErr
}
