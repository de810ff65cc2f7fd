package sync

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/adamwoolhether/tangle/foundation/crypto"
	"github.com/adamwoolhether/tangle/foundation/tangle/graph"
	"github.com/adamwoolhether/tangle/foundation/tangle/node"
	"github.com/adamwoolhether/tangle/foundation/tangle/peer"
	"github.com/adamwoolhether/tangle/foundation/tangle/transaction"
)

// EventHandler narrates protocol activity; it is never required to be set.
type EventHandler func(v string, args ...any)

// invalidGenesisSyncHash is the sentinel genesisSyncExpectedHash holds
// when no genesis vote has been accepted yet ("Invalid" in §4.7).
const invalidGenesisSyncHash = ""

// Handler is the NetworkedTangle: it wires a graph.Tangle to a
// peer.Network, translating the §4.7 message table into calls against
// the tangle's structural operations. One Handler owns one tangle and
// one network; constructing it registers every listener the protocol
// needs.
type Handler struct {
	tangle  *graph.Tangle
	net     *peer.Network
	peers   *peer.Set
	orphans *orphanQueue
	votes   *voteTracker

	self uuid.UUID
	keys crypto.KeyPair

	mu                      sync.Mutex
	genesisSyncExpectedHash string
	sentKeyTo               map[uuid.UUID]struct{}

	evHandler EventHandler
}

// New constructs a Handler and registers its listeners on net. keys is
// this process's own identity; an empty KeyPair (no Private) disables
// key-exchange responses, matching "if we have personalKeys."
func New(t *graph.Tangle, net *peer.Network, peers *peer.Set, keys crypto.KeyPair, evHandler EventHandler) *Handler {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	h := &Handler{
		tangle:    t,
		net:       net,
		peers:     peers,
		orphans:   newOrphanQueue(ev),
		votes:     newVoteTracker(),
		self:      net.Self(),
		keys:      keys,
		sentKeyTo: make(map[uuid.UUID]struct{}),
		evHandler: ev,
	}

	// A node trusts its own signatures when it delivers messages to
	// itself (tangle-file load, see persist.go), so it registers its
	// own key against its own peer id up front.
	if keys.Public != nil {
		peers.Add(peer.New(h.self, ""))
		peers.SetKey(h.self, keys.Public)
	}

	net.AddDataListener(KindPublicKeySyncRequest, h.handlePublicKeySyncRequest)
	net.AddDataListener(KindPublicKeySyncResponse, h.handlePublicKeySyncResponse)
	net.AddDataListener(KindGenesisVoteRequest, h.handleGenesisVoteRequest)
	net.AddDataListener(KindGenesisVoteResponse, h.handleGenesisVoteResponse)
	net.AddDataListener(KindTangleSynchronizeRequest, h.handleTangleSynchronizeRequest)
	net.AddDataListener(KindUpdateWeightsRequest, h.handleUpdateWeightsRequest)
	net.AddDataListener(KindSyncGenesisRequest, h.handleSyncGenesisRequest)
	net.AddDataListener(KindAddTransactionRequest, h.handleAddTransactionRequest)
	net.AddDataListener(KindSynchronizationAddTransactionRequest, h.handleSynchronizationAddTransactionRequest)

	return h
}

// Tangle exposes the underlying DAG, for callers (the CLI driver,
// tests) that need to read it directly.
func (h *Handler) Tangle() *graph.Tangle {
	return h.tangle
}

// BroadcastTransaction announces a freshly mined, already-locally-added
// node to every connected peer as an AddTransactionRequest, signing its
// hash under this process's own key.
func (h *Handler) BroadcastTransaction(n *node.TransactionNode) error {
	sig, err := crypto.SignString(h.keys.Private, n.Hash)
	if err != nil {
		return err
	}

	payload, err := EncodeTransactionMessage(TransactionMessage{
		ValidityHash: n.Hash,
		Signature:    sig,
		Transaction:  n.Transaction,
	})
	if err != nil {
		return err
	}

	h.net.SendObject(KindAddTransactionRequest, payload)

	return nil
}

// StartGenesisVote broadcasts a GenesisVoteRequest and begins tallying
// replies, used when this node suspects its genesis has fallen behind
// the network's.
func (h *Handler) StartGenesisVote() {
	h.votes.start()
	h.net.SendObject(KindGenesisVoteRequest, nil)
}

func (h *Handler) handlePublicKeySyncRequest(from uuid.UUID, _ []byte) {
	if h.keys.Private != nil {
		h.mu.Lock()
		_, already := h.sentKeyTo[from]
		h.mu.Unlock()

		if !already {
			h.sendPublicKeyTo(from)

			h.mu.Lock()
			h.sentKeyTo[from] = struct{}{}
			h.mu.Unlock()
		}
	}

	if _, ok := h.peers.Key(from); !ok {
		h.net.SendObjectTo(from, KindPublicKeySyncRequest, nil)
	}
}

func (h *Handler) sendPublicKeyTo(to uuid.UUID) {
	sig, err := crypto.SignString(h.keys.Private, VerificationProbe)
	if err != nil {
		h.evHandler("sync: signing public key probe: %s", err)
		return
	}

	payload, err := EncodePublicKeySyncResponse(PublicKeySyncResponse{
		PublicKey: crypto.PublicKeyBytes(h.keys.Public),
		Signature: sig,
	})
	if err != nil {
		h.evHandler("sync: encoding public key response: %s", err)
		return
	}

	if err := h.net.SendObjectTo(to, KindPublicKeySyncResponse, payload); err != nil {
		h.evHandler("sync: sending public key to %s: %s", to, err)
	}
}

func (h *Handler) handlePublicKeySyncResponse(from uuid.UUID, payload []byte) {
	m, err := DecodePublicKeySyncResponse(payload)
	if err != nil {
		h.evHandler("sync: decoding public key response from %s: %s", from, err)
		return
	}

	pub, err := crypto.PublicKeyFromBytes(m.PublicKey)
	if err != nil {
		h.evHandler("sync: unmarshalling public key from %s: %s", from, err)
		return
	}

	if !crypto.VerifyString(pub, VerificationProbe, m.Signature) {
		h.evHandler("sync: public key from %s failed self-verification", from)
		return
	}

	h.peers.Add(peer.New(from, ""))
	h.peers.SetKey(from, pub)
}

func (h *Handler) handleGenesisVoteRequest(from uuid.UUID, _ []byte) {
	gen := h.tangle.Genesis()
	hashes := append(append([]string(nil), gen.ParentHashes...), gen.Hash)

	sig, err := signHashes(h.keys.Private, hashes)
	if err != nil {
		h.evHandler("sync: signing genesis vote: %s", err)
		return
	}

	payload, err := EncodeGenesisVoteResponse(GenesisVoteResponse{Hashes: hashes, Signature: sig})
	if err != nil {
		h.evHandler("sync: encoding genesis vote response: %s", err)
		return
	}

	if err := h.net.SendObjectTo(from, KindGenesisVoteResponse, payload); err != nil {
		h.evHandler("sync: sending genesis vote response to %s: %s", from, err)
	}
}

func (h *Handler) handleGenesisVoteResponse(from uuid.UUID, payload []byte) {
	if !h.votes.isActive() {
		return
	}

	m, err := DecodeGenesisVoteResponse(payload)
	if err != nil {
		h.evHandler("sync: decoding genesis vote response from %s: %s", from, err)
		return
	}

	pub, ok := h.peers.Key(from)
	if !ok {
		return
	}
	if !crypto.VerifyString(pub, strings.Join(m.Hashes, ""), m.Signature) {
		h.evHandler("sync: genesis vote from %s failed verification", from)
		return
	}

	winner, done := h.votes.record(m.Hashes, from, h.peers.KeyCount())
	if !done {
		return
	}

	h.mu.Lock()
	h.genesisSyncExpectedHash = winner.hashes[len(winner.hashes)-1]
	h.mu.Unlock()

	h.votes.stop()

	if err := h.net.SendObjectTo(winner.proposer, KindTangleSynchronizeRequest, nil); err != nil {
		h.evHandler("sync: requesting synchronize from %s: %s", winner.proposer, err)
	}
}

func (h *Handler) handleTangleSynchronizeRequest(from uuid.UUID, _ []byte) {
	h.tangle.Walk(func(n *node.TransactionNode) {
		if n.IsGenesis {
			h.sendSyncGenesisTo(from, n)
			return
		}
		h.sendAddTransactionTo(from, n, KindSynchronizationAddTransactionRequest)
	})

	if err := h.net.SendObjectTo(from, KindUpdateWeightsRequest, nil); err != nil {
		h.evHandler("sync: sending update-weights to %s: %s", from, err)
	}
}

func (h *Handler) sendSyncGenesisTo(to uuid.UUID, gen *node.TransactionNode) {
	claimed := gen.Hash
	actual := gen.HashTransaction()

	sig, err := crypto.SignString(h.keys.Private, claimed+actual)
	if err != nil {
		h.evHandler("sync: signing genesis sync: %s", err)
		return
	}

	payload, err := EncodeSyncGenesisMessage(SyncGenesisMessage{
		ClaimedHash: claimed,
		ActualHash:  actual,
		Signature:   sig,
		Transaction: gen.Transaction,
	})
	if err != nil {
		h.evHandler("sync: encoding genesis sync: %s", err)
		return
	}

	if err := h.net.SendObjectTo(to, KindSyncGenesisRequest, payload); err != nil {
		h.evHandler("sync: sending genesis sync to %s: %s", to, err)
	}
}

func (h *Handler) sendAddTransactionTo(to uuid.UUID, n *node.TransactionNode, kind peer.MessageKind) {
	sig, err := crypto.SignString(h.keys.Private, n.Hash)
	if err != nil {
		h.evHandler("sync: signing transaction sync: %s", err)
		return
	}

	payload, err := EncodeTransactionMessage(TransactionMessage{
		ValidityHash: n.Hash,
		Signature:    sig,
		Transaction:  n.Transaction,
	})
	if err != nil {
		h.evHandler("sync: encoding transaction sync: %s", err)
		return
	}

	if err := h.net.SendObjectTo(to, kind, payload); err != nil {
		h.evHandler("sync: sending transaction sync to %s: %s", to, err)
	}
}

func (h *Handler) handleUpdateWeightsRequest(_ uuid.UUID, _ []byte) {
	h.tangle.UpdateWeights()
}

func (h *Handler) handleSyncGenesisRequest(from uuid.UUID, payload []byte) {
	h.mu.Lock()
	expected := h.genesisSyncExpectedHash
	h.mu.Unlock()

	if expected == invalidGenesisSyncHash {
		return
	}

	m, err := DecodeSyncGenesisMessage(payload)
	if err != nil {
		h.evHandler("sync: decoding genesis sync from %s: %s", from, err)
		return
	}

	if h.tangle.Genesis().Hash == m.ClaimedHash {
		return
	}

	if recomputed := m.Transaction.HashTransaction(); recomputed != m.ActualHash {
		h.evHandler("sync: genesis sync from %s: actual hash mismatch (claimed actual %q, recomputed %q)", from, m.ActualHash, recomputed)
		return
	}

	pub, ok := h.peers.Key(from)
	if !ok {
		h.net.SendObjectTo(from, KindPublicKeySyncRequest, nil)
		h.net.SendObjectTo(from, KindTangleSynchronizeRequest, nil)
		return
	}

	if !crypto.VerifyString(pub, m.ClaimedHash+m.ActualHash, m.Signature) {
		h.evHandler("sync: genesis sync from %s failed verification", from)
		return
	}

	if len(m.Transaction.Inputs) != 0 {
		h.evHandler("sync: genesis sync from %s: rejecting genesis with non-empty inputs", from)
		return
	}

	newGenesis := node.FromTransaction(m.Transaction, nil)
	newGenesis.IsGenesis = true

	h.tangle.SetGenesis(newGenesis)
	newGenesis.Hash = m.ClaimedHash

	h.mu.Lock()
	h.genesisSyncExpectedHash = invalidGenesisSyncHash
	h.mu.Unlock()
}

func (h *Handler) handleAddTransactionRequest(from uuid.UUID, payload []byte) {
	h.receiveTransaction(from, payload)
}

func (h *Handler) handleSynchronizationAddTransactionRequest(from uuid.UUID, payload []byte) {
	h.tangle.SetUpdateWeights(false)
	defer h.tangle.SetUpdateWeights(true)

	h.receiveTransaction(from, payload)
}

func (h *Handler) receiveTransaction(from uuid.UUID, payload []byte) {
	m, err := DecodeTransactionMessage(payload)
	if err != nil {
		h.evHandler("sync: decoding transaction message from %s: %s", from, err)
		return
	}

	if m.Transaction.Hash != m.ValidityHash {
		h.evHandler("sync: transaction from %s: validity hash mismatch (claimed %q, got %q)", from, m.ValidityHash, m.Transaction.Hash)
		return
	}

	h.attemptToAddTransaction(m.Transaction, from, m.Signature)

	h.orphans.drain(func(item pendingAdd) bool {
		return h.resolveAndAdd(item.tx, item.peerID, item.signature)
	})
}

// attemptToAddTransaction implements §4.7's four-step admission
// procedure, enqueueing tx onto the orphan queue whenever resolution
// is merely incomplete (unknown sender key, missing parent) rather
// than wrong.
func (h *Handler) attemptToAddTransaction(tx transaction.Transaction, peerID uuid.UUID, sig string) {
	if !h.resolveAndAdd(tx, peerID, sig) {
		h.orphans.enqueue(pendingAdd{tx: tx, peerID: peerID, signature: sig})
	}
}

// resolveAndAdd tries once to admit tx. It returns true when the
// attempt is finished (added, or permanently dropped for a bad
// signature or failed add) and false when tx should remain queued
// because a prerequisite (the sender's key, a parent) is still
// missing.
func (h *Handler) resolveAndAdd(tx transaction.Transaction, peerID uuid.UUID, sig string) bool {
	pub, ok := h.peers.Key(peerID)
	if !ok {
		h.net.SendObjectTo(peerID, KindPublicKeySyncRequest, nil)
		return false
	}

	if !crypto.VerifyString(pub, tx.Hash, sig) {
		h.evHandler("sync: attemptToAddTransaction: signature verification failed for %s", tx.Hash)
		return true
	}

	parents := make([]*node.TransactionNode, 0, len(tx.ParentHashes))
	for _, ph := range tx.ParentHashes {
		p := h.tangle.Find(ph)
		if p == nil {
			return false
		}
		parents = append(parents, p)
	}

	n := node.FromTransaction(tx, parents)
	if _, err := h.tangle.Add(n); err != nil {
		h.evHandler("sync: attemptToAddTransaction: rejecting %s: %s", tx.Hash, err)
		return true
	}

	h.evHandler("sync: attemptToAddTransaction: added %s", tx.Hash)

	return true
}
