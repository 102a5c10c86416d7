package app

import (
	"context"
	"sync"
)

// Notifier fans out record-change notices to long-poll watchers. Services
// call Notify after every committed mutation; the HTTP layer parks watchers
// on Wait until the record changes or the caller gives up.
type Notifier struct {
	mu      sync.Mutex
	waiters map[string][]chan struct{}
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{waiters: make(map[string][]chan struct{})}
}

// Notify wakes every watcher parked on recordID. Notifying with no watchers
// is a no-op; notices are not buffered.
func (n *Notifier) Notify(recordID string) {
	if n == nil {
		return
	}
	n.mu.Lock()
	waiting := n.waiters[recordID]
	delete(n.waiters, recordID)
	n.mu.Unlock()

	for _, waiter := range waiting {
		close(waiter)
	}
}

// Wait blocks until recordID changes or ctx ends. It returns true when a
// change arrived and false when the caller's context expired first.
func (n *Notifier) Wait(ctx context.Context, recordID string) bool {
	if n == nil {
		return false
	}

	waiter := make(chan struct{})
	n.mu.Lock()
	n.waiters[recordID] = append(n.waiters[recordID], waiter)
	n.mu.Unlock()

	select {
	case <-waiter:
		return true
	case <-ctx.Done():
		n.mu.Lock()
		remaining := n.waiters[recordID][:0]
		for _, candidate := range n.waiters[recordID] {
			if candidate != waiter {
				remaining = append(remaining, candidate)
			}
		}
		if len(remaining) == 0 {
			delete(n.waiters, recordID)
		} else {
			n.waiters[recordID] = remaining
		}
		n.mu.Unlock()
		return false
	}
}
