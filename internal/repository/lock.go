package repository

import (
	"context"
	"sync"
	"time"
)

// lockTable hands out one single-slot semaphore per event id. Slots are
// never removed; the table grows with the number of distinct events locked.
type lockTable struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{slots: make(map[string]chan struct{})}
}

// acquire waits at most wait for the id's slot. A timeout is reported as
// contention so the caller can back off and retry.
func (t *lockTable) acquire(ctx context.Context, id string, wait time.Duration) (func(), error) {
	t.mu.Lock()
	slot, ok := t.slots[id]
	if !ok {
		slot = make(chan struct{}, 1)
		t.slots[id] = slot
	}
	t.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-timer.C:
		return nil, errLockContention
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
