package worker

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/adamwoolhether/tangle/foundation/crypto"
	"github.com/adamwoolhether/tangle/foundation/tangle/graph"
	"github.com/adamwoolhether/tangle/foundation/tangle/peer"
	"github.com/adamwoolhether/tangle/foundation/tangle/sync"
)

func newTestHandler(t *testing.T) *sync.Handler {
	t.Helper()

	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generating key pair: %s", err)
	}

	tangle := graph.New(graph.Config{})
	net := peer.NewNetwork(uuid.New(), nil)
	peers := peer.NewSet()

	return sync.New(tangle, net, peers, kp, nil)
}

func TestWorker_MiningAddsATransactionToTheTangle(t *testing.T) {
	handler := newTestHandler(t)
	w := Run(handler, nil)
	defer w.Shutdown()

	genesisHash := handler.Tangle().Genesis().Hash

	w.SignalStartMining(nil, nil, 0)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		tips := handler.Tangle().Tips()
		if len(tips) == 1 && tips[0].Hash != genesisHash {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatal("timed out waiting for mined transaction to reach the tangle")
}

func TestWorker_ShutdownStopsGoroutines(t *testing.T) {
	handler := newTestHandler(t)
	w := Run(handler, nil)

	done := make(chan struct{})
	go func() {
		w.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return in time")
	}
}

func TestWorker_MaintenanceOperationPrunesWithoutPanicking(t *testing.T) {
	handler := newTestHandler(t)
	w := Run(handler, nil)
	defer w.Shutdown()

	w.runMaintenanceOperation()
}
