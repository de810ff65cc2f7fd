package graph

import (
	"math"

	"github.com/adamwoolhether/tangle/foundation/crypto"
	"github.com/adamwoolhether/tangle/foundation/tangle/node"
)

// propagateWeights recomputes cumulativeWeight along every path from
// start back to genesis: each visited node's weight becomes its own
// weight plus the sum of its children's (already current) cumulative
// weights, after which its parents are enqueued. Because a freshly
// added node has no children yet, this converges outward from the new
// leaf toward genesis. Concurrent Add calls may interleave with this
// walk; the result is only ever eventually consistent, which callers
// of CumulativeWeight are expected to tolerate.
func (t *Tangle) propagateWeights(start *node.TransactionNode) {
	visited := map[*node.TransactionNode]struct{}{}
	queue := []*node.TransactionNode{start}

	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]

		if _, ok := visited[head]; ok {
			continue
		}
		visited[head] = struct{}{}

		var sum float32
		for _, c := range head.Children.Read() {
			sum += c.CumulativeWeight()
		}
		head.SetCumulativeWeight(head.OwnWeight() + sum)

		queue = append(queue, head.Parents...)
	}
}

// UpdateWeights spawns a detached cumulative-weight pass from every
// current tip, matching the sync protocol's UpdateWeightsRequest.
func (t *Tangle) UpdateWeights() {
	for _, tip := range t.Tips() {
		go t.propagateWeights(tip)
	}
}

// biasedRandomWalk descends from start toward a tip, at each step
// favoring children whose cumulative weight is close to the current
// node's own (a weight gap means the child's branch has fallen
// behind). alpha=0 yields a uniform random choice; large alpha makes
// the walk deterministically favor the heaviest child. Expressed as a
// loop rather than the recursive descent it models, since a walk can
// run arbitrarily deep.
func (t *Tangle) biasedRandomWalk(start *node.TransactionNode, alpha float64) *node.TransactionNode {
	current := start

	for {
		children := current.Children.Read()
		if len(children) == 0 {
			return current
		}

		weights := make([]float64, len(children))
		var total float64
		for i, c := range children {
			w := math.Exp(-alpha * float64(current.CumulativeWeight()-c.CumulativeWeight()))
			if w < math.SmallestNonzeroFloat64 {
				w = math.SmallestNonzeroFloat64
			}
			weights[i] = w
			total += w
		}

		target := randFloat64() * total

		var cum float64
		chosen := children[len(children)-1]
		for i, w := range weights {
			cum += w
			if target <= cum {
				chosen = children[i]
				break
			}
		}

		current = chosen
	}
}

// randFloat64 returns a uniform value in [0, 1) derived from the
// CSPRNG, so the walk's sampling draws from the same random source as
// nonce seeding rather than an independently-seeded PRNG.
func randFloat64() float64 {
	return float64(crypto.Word32()) / float64(1<<32)
}
