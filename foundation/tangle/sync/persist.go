package sync

import (
	"io"

	"github.com/adamwoolhether/tangle/foundation/crypto"
	"github.com/adamwoolhether/tangle/foundation/tangle/node"
	"github.com/adamwoolhether/tangle/foundation/tangle/transaction"
	"github.com/adamwoolhether/tangle/foundation/tangle/wire"
)

// Save writes every node currently in the tangle to w via the tangle
// file codec: genesis first, the rest sorted by timestamp, gzipped.
func (h *Handler) Save(w io.Writer) error {
	var genesisTx transaction.Transaction
	var rest []transaction.Transaction

	h.tangle.Walk(func(n *node.TransactionNode) {
		if n.IsGenesis {
			genesisTx = n.Transaction
			return
		}
		rest = append(rest, n.Transaction)
	})

	return wire.EncodeTangleFile(w, genesisTx, rest)
}

// Load reads a tangle file from r and replays it through the normal
// handler paths: the genesis arrives as a self-delivered
// SyncGenesisRequest, every other transaction as a self-delivered
// SynchronizationAddTransactionRequest, and finally an
// UpdateWeightsRequest — so a loaded tangle is validated exactly as a
// network-synchronized one would be.
func (h *Handler) Load(r io.Reader) error {
	genesisTx, rest, err := wire.DecodeTangleFile(r)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.genesisSyncExpectedHash = genesisTx.Hash
	h.mu.Unlock()

	genesisSig, err := crypto.SignString(h.keys.Private, genesisTx.Hash+genesisTx.HashTransaction())
	if err != nil {
		return err
	}

	genesisPayload, err := EncodeSyncGenesisMessage(SyncGenesisMessage{
		ClaimedHash: genesisTx.Hash,
		ActualHash:  genesisTx.HashTransaction(),
		Signature:   genesisSig,
		Transaction: genesisTx,
	})
	if err != nil {
		return err
	}
	h.net.SendObjectToSelf(KindSyncGenesisRequest, genesisPayload)

	for _, tx := range rest {
		sig, err := crypto.SignString(h.keys.Private, tx.Hash)
		if err != nil {
			return err
		}

		payload, err := EncodeTransactionMessage(TransactionMessage{
			ValidityHash: tx.Hash,
			Signature:    sig,
			Transaction:  tx,
		})
		if err != nil {
			return err
		}

		h.net.SendObjectToSelf(KindSynchronizationAddTransactionRequest, payload)
	}

	h.net.SendObjectToSelf(KindUpdateWeightsRequest, nil)

	return nil
}
