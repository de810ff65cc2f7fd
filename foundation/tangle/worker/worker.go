// Package worker supervises the background goroutines the tangle needs
// once a node is live: mining on request and periodic maintenance
// (pruning the committed history), mirroring the teacher's ticker +
// signal-channel worker pattern over the tangle's structural
// operations instead of a block-mining state machine.
package worker

import (
	"sync"
	"time"

	tanglesync "github.com/adamwoolhether/tangle/foundation/tangle/sync"
	"github.com/adamwoolhether/tangle/foundation/tangle/transaction"
)

// EventHandler narrates worker activity; it is never required to be set.
type EventHandler func(v string, args ...any)

// maintenanceInterval is how often the worker attempts a prune pass.
const maintenanceInterval = time.Minute

// miningRequest is what SignalStartMining hands the mining goroutine:
// the raw ingredients CreateAndMine needs.
type miningRequest struct {
	inputs     []transaction.Input
	outputs    []transaction.Output
	difficulty uint8
}

// Worker manages the mining and maintenance workflows for a tangle
// node.
type Worker struct {
	handler      *tanglesync.Handler
	wg           sync.WaitGroup
	ticker       time.Ticker
	shut         chan struct{}
	startMining  chan miningRequest
	cancelMining chan chan struct{}
	evHandler    EventHandler
}

// Run constructs a Worker over handler and starts its background
// goroutines. It does not return until every goroutine has reported
// running.
func Run(handler *tanglesync.Handler, evHandler EventHandler) *Worker {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	w := &Worker{
		handler:      handler,
		ticker:       *time.NewTicker(maintenanceInterval),
		shut:         make(chan struct{}),
		startMining:  make(chan miningRequest, 1),
		cancelMining: make(chan chan struct{}, 1),
		evHandler:    ev,
	}

	operations := []func(){
		w.miningOperations,
		w.maintenanceOperations,
	}

	g := len(operations)
	w.wg.Add(g)

	hasStarted := make(chan bool)
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	for i := 0; i < g; i++ {
		<-hasStarted
	}

	return w
}

// Shutdown terminates the worker's goroutines.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: stop ticker")
	w.ticker.Stop()

	w.evHandler("worker: shutdown: signal cancel mining")
	done := w.SignalCancelMining()
	done()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// SignalStartMining queues a mining request. If one is already
// pending, the new request is dropped and only the pending one is
// mined.
func (w *Worker) SignalStartMining(inputs []transaction.Input, outputs []transaction.Output, difficulty uint8) {
	req := miningRequest{inputs: inputs, outputs: outputs, difficulty: difficulty}

	select {
	case w.startMining <- req:
	default:
	}
	w.evHandler("worker: signalStartMining: mining signaled")
}

// SignalCancelMining asks the in-flight mining operation to abandon
// its result once it next checks in. The caller must invoke the
// returned done func to let the worker proceed with any follow-on
// state changes.
func (w *Worker) SignalCancelMining() (done func()) {
	wait := make(chan struct{})

	select {
	case w.cancelMining <- wait:
	default:
	}
	w.evHandler("worker: signalCancelMining: cancel mining signaled")

	return func() { close(wait) }
}

func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}

func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: started")
	defer w.evHandler("worker: miningOperations: completed")

	for {
		select {
		case req := <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation(req)
			}
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation runs CreateAndMine, drops the result if a cancel
// was signaled in the meantime, and otherwise adds it locally and
// broadcasts it. Unlike the teacher's context-cancellable block
// mining, CreateAndMine/Mine have no cooperative cancellation point of
// their own (the underlying proof-of-work loop is a tight hash-and-
// increment loop with nothing to check); cancellation here only takes
// effect between mining and the local add, by design: a request to
// cancel a nearly-finished mine would otherwise win a race against
// broadcasting something that had already found a valid nonce.
func (w *Worker) runMiningOperation(req miningRequest) {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	// If mining is signalled to be cancelled, this goroutine can't
	// terminate until the canceller calls its done func.
	var wait chan struct{}
	defer func() {
		if wait != nil {
			w.evHandler("worker: runMiningOperation: MINING: termination signal: waiting")
			<-wait
			w.evHandler("worker: runMiningOperation: MINING: termination signal: received")
		}
	}()

	select {
	case <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: drained cancel channel")
	default:
	}

	n, err := w.handler.Tangle().CreateAndMine(req.inputs, req.outputs, req.difficulty)
	if err != nil {
		w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
		return
	}

	select {
	case wait = <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: cancelled: dropping mined node %s", n.Hash)
		return
	default:
	}

	if _, err := w.handler.Tangle().Add(n); err != nil {
		w.evHandler("worker: runMiningOperation: MINING: ERROR: adding mined node: %s", err)
		return
	}

	if err := w.handler.BroadcastTransaction(n); err != nil {
		w.evHandler("worker: runMiningOperation: MINING: WARNING: broadcasting %s: %s", n.Hash, err)
	}
}

func (w *Worker) maintenanceOperations() {
	w.evHandler("worker: maintenanceOperations: started")
	defer w.evHandler("worker: maintenanceOperations: completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runMaintenanceOperation()
			}
		case <-w.shut:
			w.evHandler("worker: maintenanceOperations: received shut signal")
			return
		}
	}
}

// runMaintenanceOperation attempts to compact history into a new
// common genesis. It is a no-op whenever no genesisCandidates snapshot
// has reached full confirmation confidence yet.
func (w *Worker) runMaintenanceOperation() {
	w.evHandler("worker: runMaintenanceOperation: started")
	defer w.evHandler("worker: runMaintenanceOperation: completed")

	w.handler.Tangle().Prune()
}
