package graph

import (
	"github.com/adamwoolhether/tangle/foundation/crypto"
	"github.com/adamwoolhether/tangle/foundation/tangle/node"
	"github.com/adamwoolhether/tangle/foundation/tangle/transaction"
)

const fullConfidence = 1

// createLatestCommonGenesis searches the most recent genesisCandidates
// snapshot (newest first) in which every listed node has reached full
// confirmation confidence. It returns the synthetic genesis built from
// that snapshot together with the snapshot itself (prune needs the
// live node pointers, not just the hashes baked into the synthetic
// node). If no snapshot qualifies, both return values are nil: the
// current genesis is left unchanged.
func (t *Tangle) createLatestCommonGenesis() (*node.TransactionNode, []*node.TransactionNode) {
	for _, snapshot := range t.genesisCandidates.mostRecentFirst() {
		if len(snapshot) == 0 {
			continue
		}

		qualifies := true
		for _, n := range snapshot {
			if t.ConfirmationConfidence(n) < fullConfidence {
				qualifies = false
				break
			}
		}
		if !qualifies {
			continue
		}

		return t.buildSyntheticGenesis(snapshot), snapshot
	}

	return nil, nil
}

// buildSyntheticGenesis constructs the alias node that stands in for
// the pruned history up to snapshot C: no inputs, one output per
// account referenced anywhere in the history being compacted with that account's
// backward-cumulative balance as of C, and no real parents. Its hash
// is declared as C[0]'s hash and its parentHashes as the remaining
// C entries' hashes, rather than derived, since it represents merged
// ancestors rather than a freshly mined transaction.
func (t *Tangle) buildSyntheticGenesis(c []*node.TransactionNode) *node.TransactionNode {
	accounts := t.collectAccounts(c)

	outputs := make([]transaction.Output, 0, len(accounts))
	for id, pub := range accounts {
		balance := t.backwardCumulativeBalance(id, c)
		outputs = append(outputs, transaction.Output{Account: pub, Amount: balance})
	}

	tx := transaction.Construct(nil, nil, outputs, 0)
	tx.Hash = c[0].Hash

	parentHashes := make([]string, len(c)-1)
	for i, n := range c[1:] {
		parentHashes[i] = n.Hash
	}
	tx.ParentHashes = parentHashes

	gen := node.FromTransaction(tx, nil)
	gen.IsGenesis = true

	return gen
}

// collectAccounts enumerates every account referenced by a
// transaction reachable from the current genesis, stopping descent at
// any node in stopSet so that history past the prune point is not
// walked.
func (t *Tangle) collectAccounts(stopSet []*node.TransactionNode) map[crypto.AccountID]*crypto.PublicKey {
	stop := make(map[*node.TransactionNode]struct{}, len(stopSet))
	for _, n := range stopSet {
		stop[n] = struct{}{}
	}

	gen := t.Genesis()

	accounts := map[crypto.AccountID]*crypto.PublicKey{}
	visited := map[*node.TransactionNode]struct{}{gen: {}}
	queue := []*node.TransactionNode{gen}

	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]

		for _, in := range head.Inputs {
			accounts[in.AccountID()] = in.Account
		}
		for _, out := range head.Outputs {
			accounts[out.AccountID()] = out.Account
		}

		if _, stopped := stop[head]; stopped {
			continue
		}

		for _, child := range head.Children.Read() {
			if _, ok := visited[child]; ok {
				continue
			}
			visited[child] = struct{}{}
			queue = append(queue, child)
		}
	}

	return accounts
}

// backwardCumulativeBalance computes account's running balance at the
// moment snapshot c was taken, by walking backward from c through
// parents to genesis. Unlike a forward walk from genesis, this only
// ever visits ancestors of c, so history on branches that never reach
// c (and will be discarded by the prune) is not counted.
func (t *Tangle) backwardCumulativeBalance(account crypto.AccountID, c []*node.TransactionNode) float64 {
	visited := make(map[*node.TransactionNode]struct{}, len(c))
	queue := make([]*node.TransactionNode, 0, len(c))
	for _, n := range c {
		visited[n] = struct{}{}
		queue = append(queue, n)
	}

	var balance float64

	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]

		for _, in := range head.Inputs {
			if in.AccountID() == account {
				balance -= in.Amount
			}
		}
		for _, out := range head.Outputs {
			if out.AccountID() == account {
				balance += out.Amount
			}
		}

		for _, p := range head.Parents {
			if _, ok := visited[p]; ok {
				continue
			}
			visited[p] = struct{}{}
			queue = append(queue, p)
		}
	}

	return balance
}

func dedupeTips(tips []*node.TransactionNode) []*node.TransactionNode {
	seen := make(map[string]struct{}, len(tips))
	out := make([]*node.TransactionNode, 0, len(tips))
	for _, t := range tips {
		if _, ok := seen[t.Hash]; ok {
			continue
		}
		seen[t.Hash] = struct{}{}
		out = append(out, t)
	}

	return out
}

// Prune attempts to compact history into a new, latest common genesis.
// It is a no-op if no genesisCandidates snapshot has reached full
// confirmation confidence.
func (t *Tangle) Prune() {
	newGenesis, c := t.createLatestCommonGenesis()
	if newGenesis == nil {
		return
	}

	t.mu.Lock()
	originalTips := t.tips.Read()
	t.tips.Set(nil)

	var collectedChildren []*node.TransactionNode
	seen := map[string]struct{}{}

	for _, cNode := range c {
		for _, ch := range cNode.Children.Steal() {
			if _, ok := seen[ch.Hash]; ok {
				continue
			}
			seen[ch.Hash] = struct{}{}
			collectedChildren = append(collectedChildren, ch)
		}

		// Each C-node's parent is about to be folded into the new
		// genesis's merged history; its entire children list (which by
		// construction only ever led to C-nodes or their siblings, all
		// being discarded here) is wiped so it satisfies removeTip's
		// childless precondition once setGenesis walks the temporary
		// tips below.
		for _, p := range cNode.Parents {
			p.Children.Set(nil)
			t.tips.Append(p)
		}
	}
	t.tips.Set(dedupeTips(t.tips.Read()))
	t.mu.Unlock()

	newGenesis.Children.Set(collectedChildren)
	for _, ch := range collectedChildren {
		ch.Parents = []*node.TransactionNode{newGenesis}
	}

	// setGenesis reclaims the old history back to the temporary tips
	// seeded above.
	t.SetGenesis(newGenesis)

	t.mu.Lock()
	t.tips.Set(originalTips)
	t.mu.Unlock()

	t.evHandler("graph: prune: compacted history into %s", newGenesis.Hash)
}
