// Package graph implements the concurrent in-memory DAG the rest of the
// system gossips over: insertion, traversal, balance accounting,
// cumulative-weight propagation, biased-random-walk tip selection,
// confirmation confidence, and pruning into a compacted genesis.
package graph

import (
	"sync"

	"github.com/adamwoolhether/tangle/foundation/tangle/node"
)

// EventHandler is called as the tangle narrates its own structural
// changes; it is never required to be set.
type EventHandler func(v string, args ...any)

const genesisCandidateCapacity = 10

// candidateRing is a bounded ring buffer of tips snapshots, oldest
// evicted first once full.
type candidateRing struct {
	mu  sync.Mutex
	buf [][]*node.TransactionNode
}

func (r *candidateRing) push(snapshot []*node.TransactionNode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf = append(r.buf, snapshot)
	if len(r.buf) > genesisCandidateCapacity {
		r.buf = r.buf[len(r.buf)-genesisCandidateCapacity:]
	}
}

// mostRecentFirst returns a copy of the buffer ordered newest-first.
func (r *candidateRing) mostRecentFirst() [][]*node.TransactionNode {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]*node.TransactionNode, len(r.buf))
	for i, s := range r.buf {
		out[len(r.buf)-1-i] = s
	}

	return out
}

// Config bundles the arguments New needs to build a Tangle.
type Config struct {
	EvHandler EventHandler
}

// Tangle is the concurrent DAG of transactions. All structural
// mutation — add, removeTip, setGenesis — serializes through mu. mu is
// a plain (non-reentrant) mutex; operations that must perform several
// structural steps as one critical region (setGenesis repeatedly
// calling what would otherwise be removeTip) do so through the
// unexported *Locked helpers below, which assume the caller already
// holds mu, rather than through a true recursive mutex.
type Tangle struct {
	mu sync.Mutex

	genesis *node.TransactionNode
	tips    *node.ChildSet

	genesisCandidates *candidateRing

	// updateWeights suppresses the detached weight-update pass Add
	// would otherwise spawn; cleared during bulk synchronization.
	updateWeights bool

	evHandler EventHandler
}

// New constructs a Tangle rooted at a fresh genesis node.
func New(cfg Config) *Tangle {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	gen := node.NewGenesis()

	t := &Tangle{
		genesis:           gen,
		tips:              &node.ChildSet{},
		genesisCandidates: &candidateRing{},
		updateWeights:     true,
		evHandler:         ev,
	}
	t.tips.Append(gen)

	return t
}

// Genesis returns the current genesis node.
func (t *Tangle) Genesis() *node.TransactionNode {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.genesis
}

// Tips returns a snapshot of the current tip set.
func (t *Tangle) Tips() []*node.TransactionNode {
	return t.tips.Read()
}

// SetUpdateWeights toggles the background weight-update pass Add
// spawns on every successful insert. Bulk synchronization clears it
// for the duration of the transfer and restores it afterward.
func (t *Tangle) SetUpdateWeights(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.updateWeights = enabled
}

// Find performs a breadth-first search from genesis through children
// for a node with the given hash. The genesis node aliases every hash
// in its own parentHashes (it represents merged ancestors after a
// prune), so a match against any of them also returns genesis.
func (t *Tangle) Find(hash string) *node.TransactionNode {
	gen := t.Genesis()

	if gen.Hash == hash {
		return gen
	}
	for _, ph := range gen.ParentHashes {
		if ph == hash {
			return gen
		}
	}

	visited := map[string]struct{}{gen.Hash: {}}
	queue := []*node.TransactionNode{gen}

	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]

		for _, child := range head.Children.Read() {
			if child.Hash == hash {
				return child
			}
			if _, ok := visited[child.Hash]; ok {
				continue
			}
			visited[child.Hash] = struct{}{}
			queue = append(queue, child)
		}
	}

	return nil
}

// Add validates and inserts a fully-formed node into the DAG, wiring
// it to its already-resolved parent nodes. It is the only way to
// extend the tangle; every network path funnels through it.
//
// Preconditions are checked, in order, against a snapshot taken before
// the structural mutex is acquired; any failure aborts the add.
func (t *Tangle) Add(n *node.TransactionNode) (string, error) {
	if err := n.ValidateTransaction(); err != nil {
		return "", err
	}
	if !n.ValidateTransactionTotals() {
		return "", &InsufficientTotals{Hash: n.Hash}
	}
	if !n.ValidateTransactionMined() {
		return "", &NotMined{Hash: n.Hash}
	}

	cache := newAccountBalanceCache(t)
	for _, in := range n.Inputs {
		if err := cache.spend(in.AccountID(), in.Amount); err != nil {
			return "", err
		}
	}

	for _, p := range n.Parents {
		if t.Find(p.Hash) == nil {
			return "", &NodeNotFound{Hash: p.Hash}
		}
		if p.Children.Contains(n.Hash) {
			return "", &DuplicateChild{ParentHash: p.Hash, ChildHash: n.Hash}
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, p := range n.Parents {
		t.tips.Remove(p.Hash)
		p.Children.Append(n)
	}
	t.tips.Append(n)

	if t.updateWeights {
		go t.propagateWeights(n)
	}

	if t.tips.Len() <= 3 {
		t.genesisCandidates.push(t.tips.Read())
	}

	t.evHandler("graph: add: inserted %s", n.Hash)

	return n.Hash, nil
}

// RemoveTip erases a childless tip from the DAG: it is unlinked from
// every parent's children, and any parent that becomes childless
// itself becomes a new tip.
func (t *Tangle) RemoveTip(tip *node.TransactionNode) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.removeTipLocked(tip)
}

// removeTipLocked assumes mu is already held.
func (t *Tangle) removeTipLocked(tip *node.TransactionNode) error {
	if tip.Children.Len() != 0 {
		return &NotATip{Hash: tip.Hash}
	}

	for _, p := range tip.Parents {
		p.Children.Remove(tip.Hash)
		if p.Children.Len() == 0 {
			t.tips.Append(p)
		}
	}

	t.tips.Remove(tip.Hash)
	tip.Parents = nil

	return nil
}

// Walk holds the structural mutex for its entire duration and calls
// visit once for every node reachable from genesis, genesis first,
// then the rest in depth-first order. It is used by full-tangle
// synchronization, which must send a consistent snapshot with no
// concurrent add/removeTip interleaved.
func (t *Tangle) Walk(visit func(n *node.TransactionNode)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	gen := t.genesis
	visit(gen)

	visited := map[string]struct{}{gen.Hash: {}}
	stack := append([]*node.TransactionNode(nil), gen.Children.Read()...)

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := visited[n.Hash]; ok {
			continue
		}
		visited[n.Hash] = struct{}{}

		visit(n)

		stack = append(stack, n.Children.Read()...)
	}
}

// SetGenesis installs newGenesis as the tangle's root. If an old
// genesis exists, every current tip is repeatedly removed until the
// old genesis's children list is empty, reclaiming the entire
// subgraph between the old and new genesis.
func (t *Tangle) SetGenesis(newGenesis *node.TransactionNode) {
	newGenesis.IsGenesis = true

	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.genesis
	if old != nil {
		for old.Children.Len() > 0 {
			for _, tip := range t.tips.Read() {
				if tip.Children.Len() == 0 {
					_ = t.removeTipLocked(tip)
				}
			}
		}

		// Once reclaimed, old itself either sat in tips already (it had
		// no children to begin with) or was appended to tips by
		// removeTipLocked as its last child was stripped away; either
		// way it must not remain a tip once it is no longer genesis.
		t.tips.Remove(old.Hash)
	}

	t.genesis = newGenesis

	// A freshly synced or freshly constructed genesis with no children
	// of its own is, for now, the only tip. A pruning-alias genesis
	// (built with its merged history's children already attached)
	// never takes this path; Prune manages the tip set itself.
	if newGenesis.Children.Len() == 0 {
		t.tips.Append(newGenesis)
	}

	if t.updateWeights {
		go t.propagateWeights(newGenesis)
	}

	t.evHandler("graph: setGenesis: installed %s", newGenesis.Hash)
}
