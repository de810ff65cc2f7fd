package graph

import (
	"github.com/adamwoolhether/tangle/foundation/crypto"
	"github.com/adamwoolhether/tangle/foundation/tangle/node"
)

const confidenceEpsilon = 1e-9

// QueryBalance computes an account's balance via breadth-first
// traversal from genesis. Children are only enqueued once they meet
// the confidence threshold (0 disables the confidence filter
// entirely), so a caller asking for a more settled view of the ledger
// can ignore not-yet-confirmed branches.
func (t *Tangle) QueryBalance(account crypto.AccountID, confidenceThreshold float64) (float64, error) {
	return t.walkBalance(t.Genesis(), account, confidenceThreshold)
}

func (t *Tangle) walkBalance(start *node.TransactionNode, account crypto.AccountID, confidenceThreshold float64) (float64, error) {
	var balance float64

	visited := map[string]struct{}{start.Hash: {}}
	queue := []*node.TransactionNode{start}

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

		if balance < 0 {
			return 0, &InvalidBalance{NodeHash: head.Hash, Account: string(account), Balance: balance}
		}

		for _, child := range head.Children.Read() {
			if _, ok := visited[child.Hash]; ok {
				continue
			}

			if confidenceThreshold >= confidenceEpsilon && t.ConfirmationConfidence(child) < confidenceThreshold {
				continue
			}

			visited[child.Hash] = struct{}{}
			queue = append(queue, child)
		}
	}

	return balance, nil
}

// accountBalanceCache memoizes QueryBalance results within a single Add
// call so that multiple inputs spending from the same account in one
// transaction are checked cumulatively rather than each against the
// pre-transaction balance.
type accountBalanceCache struct {
	t      *Tangle
	values map[crypto.AccountID]float64
}

func newAccountBalanceCache(t *Tangle) *accountBalanceCache {
	return &accountBalanceCache{t: t, values: make(map[crypto.AccountID]float64)}
}

// spend subtracts amount from account's running balance (computed from
// genesis on first use), returning an error if the result would be
// negative.
func (c *accountBalanceCache) spend(account crypto.AccountID, amount float64) error {
	bal, ok := c.values[account]
	if !ok {
		computed, err := c.t.QueryBalance(account, 0)
		if err != nil {
			return err
		}
		bal = computed
	}

	bal -= amount
	if bal < -confidenceEpsilon {
		return &InvalidBalance{NodeHash: "<pending>", Account: string(account), Balance: bal}
	}

	c.values[account] = bal

	return nil
}
