// Package node provides TransactionNode, the DAG-connected wrapper
// around a transaction, and the concurrency-safe child/tip set types
// the tangle graph is built from.
package node

import (
	"sync"

	"github.com/adamwoolhether/tangle/foundation/tangle/transaction"
)

// ChildSet is a monitored set of child nodes: a reader/writer lock
// protects the slice itself, and a protective outer mutex serializes
// writers so a steady stream of readers can't starve a writer waiting
// on the RWMutex.
type ChildSet struct {
	outer sync.Mutex
	mu    sync.RWMutex
	items []*TransactionNode
}

// Read returns a snapshot of the current children.
func (c *ChildSet) Read() []*TransactionNode {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*TransactionNode, len(c.items))
	copy(out, c.items)

	return out
}

// Len returns the number of children.
func (c *ChildSet) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Contains reports whether a child with the given hash is present.
func (c *ChildSet) Contains(hash string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, n := range c.items {
		if n.Hash == hash {
			return true
		}
	}

	return false
}

// Append adds a child.
func (c *ChildSet) Append(n *TransactionNode) {
	c.outer.Lock()
	defer c.outer.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = append(c.items, n)
}

// Remove deletes the child with the given hash, reporting whether it
// was present.
func (c *ChildSet) Remove(hash string) bool {
	c.outer.Lock()
	defer c.outer.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, n := range c.items {
		if n.Hash == hash {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}

	return false
}

// Set replaces the entire contents of the set.
func (c *ChildSet) Set(items []*TransactionNode) {
	c.outer.Lock()
	defer c.outer.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = items
}

// Steal empties the set and returns its previous contents, used by
// pruning to relocate a subtree in one atomic step.
func (c *ChildSet) Steal() []*TransactionNode {
	c.outer.Lock()
	defer c.outer.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.items
	c.items = nil

	return out
}

// TransactionNode wraps an immutable Transaction with the graph edges
// that make it part of the tangle: a parent list and a mutable,
// monitored child set.
type TransactionNode struct {
	transaction.Transaction

	// Parents is set at construction time. The tangle rewrites it only
	// structurally: RemoveTip clears it, and Prune repoints the
	// children of the pruned history at the new genesis (ownership of
	// the backing nodes is shared with the nodes' own child sets).
	Parents []*TransactionNode

	// Children is the monitored set of nodes approving this one.
	Children *ChildSet

	// IsGenesis is set to true when a node is built or installed as a
	// genesis (NewGenesis, SetGenesis, pruning, genesis sync); nothing
	// resets it.
	IsGenesis bool

	cwMu             sync.RWMutex
	cumulativeWeight float32
}

// New constructs a TransactionNode from its resolved parent nodes,
// building a fresh, unmined transaction referencing them. The caller is
// responsible for calling Mine on the returned node's Transaction.
func New(parents []*TransactionNode, inputs []transaction.Input, outputs []transaction.Output, difficulty uint8) *TransactionNode {
	parentHashes := make([]string, len(parents))
	for i, p := range parents {
		parentHashes[i] = p.Hash
	}

	return &TransactionNode{
		Transaction: transaction.Construct(parentHashes, inputs, outputs, difficulty),
		Parents:     parents,
		Children:    &ChildSet{},
	}
}

// FromTransaction wraps an already-built (and already-mined)
// Transaction with resolved parent nodes, preserving every field of tx
// verbatim. This is used when admitting a transaction received from a
// peer, where the timestamp/nonce/hash must not be recomputed.
func FromTransaction(tx transaction.Transaction, parents []*TransactionNode) *TransactionNode {
	return &TransactionNode{
		Transaction: tx,
		Parents:     parents,
		Children:    &ChildSet{},
	}
}

// NewGenesis constructs an empty root node with no parents.
func NewGenesis() *TransactionNode {
	n := &TransactionNode{
		Transaction: transaction.Construct(nil, nil, nil, 0),
		Children:    &ChildSet{},
	}
	n.IsGenesis = true

	return n
}

// CumulativeWeight returns the node's last-computed cumulative weight.
// The value is eventually consistent; concurrent mutation may make it
// briefly stale.
func (n *TransactionNode) CumulativeWeight() float32 {
	n.cwMu.RLock()
	defer n.cwMu.RUnlock()

	return n.cumulativeWeight
}

// SetCumulativeWeight stores a newly computed cumulative weight.
func (n *TransactionNode) SetCumulativeWeight(w float32) {
	n.cwMu.Lock()
	defer n.cwMu.Unlock()

	n.cumulativeWeight = w
}

// Height is 0 for the genesis node, else 1 + the maximum of its
// parents' heights. It is computed iteratively with an explicit stack
// to bound stack use over deep graphs.
func (n *TransactionNode) Height() int {
	type frame struct {
		node    *TransactionNode
		visited bool
	}

	memo := make(map[*TransactionNode]int)
	stack := []frame{{node: n}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]

		if top.node.IsGenesis || len(top.node.Parents) == 0 {
			memo[top.node] = 0
			stack = stack[:len(stack)-1]
			continue
		}

		if top.visited {
			max := 0
			for _, p := range top.node.Parents {
				if h := memo[p]; h > max {
					max = h
				}
			}
			memo[top.node] = 1 + max
			stack = stack[:len(stack)-1]
			continue
		}

		top.visited = true
		for _, p := range top.node.Parents {
			if _, ok := memo[p]; !ok {
				stack = append(stack, frame{node: p})
			}
		}
	}

	return memo[n]
}

// Depth is 0 for a tip, else 1 + the maximum of its children's depths.
// Computed iteratively to bound stack use; requires a read lock over
// each node's children along the path.
func (n *TransactionNode) Depth() int {
	type frame struct {
		node     *TransactionNode
		children []*TransactionNode
		visited  bool
	}

	memo := make(map[*TransactionNode]int)
	stack := []*frame{{node: n}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]

		children := top.children
		if children == nil {
			children = top.node.Children.Read()
			top.children = children
		}

		if len(children) == 0 {
			memo[top.node] = 0
			stack = stack[:len(stack)-1]
			continue
		}

		if top.visited {
			max := 0
			for _, c := range children {
				if d := memo[c]; d > max {
					max = d
				}
			}
			memo[top.node] = 1 + max
			stack = stack[:len(stack)-1]
			continue
		}

		top.visited = true
		for _, c := range children {
			if _, ok := memo[c]; !ok {
				stack = append(stack, &frame{node: c})
			}
		}
	}

	return memo[n]
}

// IsTip reports whether the node currently has no children.
func (n *TransactionNode) IsTip() bool {
	return n.Children.Len() == 0
}
