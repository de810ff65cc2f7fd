package sync

import (
	"sync"

	"github.com/google/uuid"

	"github.com/adamwoolhether/tangle/foundation/tangle/transaction"
)

const (
	orphanQueueFloor   = 8
	orphanQueueCeiling = 1024
)

// pendingAdd is a transaction awaiting a parent or a sender key it
// doesn't have yet.
type pendingAdd struct {
	tx        transaction.Transaction
	peerID    uuid.UUID
	signature string
}

// orphanQueue is the bounded, elastic ring buffer described in §4.7 and
// §5: it doubles its capacity on saturation (up to a ceiling) and
// halves it once usage falls below half, never shrinking past the
// floor. Arrivals beyond the ceiling are dropped.
type orphanQueue struct {
	mu        sync.Mutex
	items     []pendingAdd
	capacity  int
	evHandler EventHandler
}

func newOrphanQueue(evHandler EventHandler) *orphanQueue {
	return &orphanQueue{capacity: orphanQueueFloor, evHandler: evHandler}
}

// enqueue appends item, growing capacity first if the queue is full.
// It reports whether the item was accepted.
func (q *orphanQueue) enqueue(item pendingAdd) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		if q.capacity >= orphanQueueCeiling {
			q.evHandler("sync: orphan queue: dropping transaction %s, queue saturated at ceiling %d", item.tx.Hash, orphanQueueCeiling)
			return false
		}

		q.capacity *= 2
		if q.capacity > orphanQueueCeiling {
			q.capacity = orphanQueueCeiling
		}
		q.evHandler("sync: orphan queue: grew to capacity %d", q.capacity)
	}

	q.items = append(q.items, item)

	return true
}

// drain attempts tryAdd against every queued item once, in arrival
// order, keeping whatever still fails (still missing a parent or key).
// It then shrinks capacity if usage has fallen below half.
func (q *orphanQueue) drain(tryAdd func(pendingAdd) bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	remaining := q.items[:0]
	for _, item := range q.items {
		if !tryAdd(item) {
			remaining = append(remaining, item)
		}
	}
	q.items = remaining

	if q.capacity > orphanQueueFloor && len(q.items) < q.capacity/2 {
		q.capacity /= 2
		if q.capacity < orphanQueueFloor {
			q.capacity = orphanQueueFloor
		}
		q.evHandler("sync: orphan queue: shrank to capacity %d", q.capacity)
	}
}

// len reports the number of currently queued items.
func (q *orphanQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
