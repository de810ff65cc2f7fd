package sync

import (
	"testing"

	"github.com/google/uuid"

	"github.com/adamwoolhether/tangle/foundation/tangle/transaction"
)

func noopEvHandler(string, ...any) {}

func TestOrphanQueue_GrowsOnSaturation(t *testing.T) {
	q := newOrphanQueue(noopEvHandler)

	for i := 0; i < orphanQueueFloor; i++ {
		if !q.enqueue(pendingAdd{tx: transaction.Transaction{Hash: "x"}, peerID: uuid.New()}) {
			t.Fatalf("enqueue %d: expected acceptance under floor capacity", i)
		}
	}

	if !q.enqueue(pendingAdd{tx: transaction.Transaction{Hash: "grow"}, peerID: uuid.New()}) {
		t.Fatal("enqueue past floor: expected growth to accept the item")
	}

	if q.len() != orphanQueueFloor+1 {
		t.Fatalf("len() = %d, want %d", q.len(), orphanQueueFloor+1)
	}
}

func TestOrphanQueue_DropsAtCeiling(t *testing.T) {
	q := newOrphanQueue(noopEvHandler)
	q.capacity = orphanQueueCeiling

	for i := 0; i < orphanQueueCeiling; i++ {
		q.items = append(q.items, pendingAdd{tx: transaction.Transaction{Hash: "x"}})
	}

	if q.enqueue(pendingAdd{tx: transaction.Transaction{Hash: "overflow"}}) {
		t.Fatal("enqueue at ceiling: expected rejection")
	}
}

func TestOrphanQueue_DrainShrinksBelowHalfUsage(t *testing.T) {
	q := newOrphanQueue(noopEvHandler)
	q.capacity = 64
	for i := 0; i < 10; i++ {
		q.items = append(q.items, pendingAdd{tx: transaction.Transaction{Hash: "x"}})
	}

	q.drain(func(pendingAdd) bool { return true })

	if q.len() != 0 {
		t.Fatalf("len() after draining everything = %d, want 0", q.len())
	}
	if q.capacity != 32 {
		t.Fatalf("capacity after shrink = %d, want 32 (64 halved once)", q.capacity)
	}
}

func TestOrphanQueue_DrainKeepsFailures(t *testing.T) {
	q := newOrphanQueue(noopEvHandler)
	q.enqueue(pendingAdd{tx: transaction.Transaction{Hash: "keep"}})
	q.enqueue(pendingAdd{tx: transaction.Transaction{Hash: "drop"}})

	q.drain(func(item pendingAdd) bool {
		return item.tx.Hash == "drop"
	})

	if q.len() != 1 {
		t.Fatalf("len() = %d, want 1", q.len())
	}
	if q.items[0].tx.Hash != "keep" {
		t.Fatalf("remaining item = %q, want %q", q.items[0].tx.Hash, "keep")
	}
}
