package graph

import (
	"errors"

	"github.com/adamwoolhether/tangle/foundation/tangle/node"
	"github.com/adamwoolhether/tangle/foundation/tangle/transaction"
)

const resampleAttempts = 256

// ErrNoParent is returned by CreateAndMine when a biased random walk
// fails to resolve to a usable parent.
var ErrNoParent = errors.New("graph: createAndMine: biased random walk returned no parent")

// CreateAndMine implements G-IOTA-style tip selection: two biased
// random walks from genesis choose the approved parents, a third
// "left-behind" tip is appended when one has fallen far enough behind
// in height, and the resulting transaction is mined before it is
// returned. The caller is responsible for calling Add with the
// result.
func (t *Tangle) CreateAndMine(inputs []transaction.Input, outputs []transaction.Output, difficulty uint8) (*node.TransactionNode, error) {
	gen := t.Genesis()

	a := t.biasedRandomWalk(gen, 10)
	b := t.biasedRandomWalk(gen, 10)

	for attempt := 0; attempt < resampleAttempts && len(t.Tips()) > 1 && a == b; attempt++ {
		b = t.biasedRandomWalk(gen, 10)
	}

	if a == nil || b == nil {
		return nil, ErrNoParent
	}

	parents := []*node.TransactionNode{a, b}

	avgHeight := (a.Height() + b.Height()) / 2

	for _, tip := range t.Tips() {
		if tip.Height() <= avgHeight-5 {
			parents = append(parents, tip)
			break
		}
	}

	parents = dedupeParents(parents)

	n := node.New(parents, inputs, outputs, difficulty)
	n.Mine()

	return n, nil
}

func dedupeParents(parents []*node.TransactionNode) []*node.TransactionNode {
	seen := make(map[string]struct{}, len(parents))
	out := make([]*node.TransactionNode, 0, len(parents))
	for _, p := range parents {
		if _, ok := seen[p.Hash]; ok {
			continue
		}
		seen[p.Hash] = struct{}{}
		out = append(out, p)
	}

	return out
}
