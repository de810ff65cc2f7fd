// Package sync implements the NetworkedTangle gossip protocol:
// public-key exchange, genesis voting, tangle synchronization, orphan
// queueing, and the handlers that wire incoming peer messages into the
// graph package's structural operations.
package sync

import (
	"bytes"
	"encoding/binary"
	"sort"
	"strings"

	"github.com/adamwoolhether/tangle/foundation/crypto"
	"github.com/adamwoolhether/tangle/foundation/tangle/peer"
	"github.com/adamwoolhether/tangle/foundation/tangle/transaction"
	"github.com/adamwoolhether/tangle/foundation/tangle/wire"
)

// Message kinds, one per §4.7 protocol message.
const (
	KindPublicKeySyncRequest peer.MessageKind = iota + 1
	KindPublicKeySyncResponse
	KindGenesisVoteRequest
	KindGenesisVoteResponse
	KindTangleSynchronizeRequest
	KindUpdateWeightsRequest
	KindSyncGenesisRequest
	KindAddTransactionRequest
	KindSynchronizationAddTransactionRequest
)

// PublicKeySyncResponse carries a peer's public key along with proof
// it holds the matching private key: a signature over VerificationProbe.
type PublicKeySyncResponse struct {
	PublicKey []byte
	Signature string
}

// VerificationProbe is the fixed message a PublicKeySyncResponse's
// signature is computed over, matching the KeyPair.Validate probe.
const VerificationProbe = "VERIFY"

func EncodePublicKeySyncResponse(m PublicKeySyncResponse) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.WriteString(&buf, string(m.PublicKey)); err != nil {
		return nil, err
	}
	if err := wire.WriteString(&buf, m.Signature); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodePublicKeySyncResponse(raw []byte) (PublicKeySyncResponse, error) {
	buf := bytes.NewReader(raw)
	pub, err := wire.ReadString(buf)
	if err != nil {
		return PublicKeySyncResponse{}, err
	}
	sig, err := wire.ReadString(buf)
	if err != nil {
		return PublicKeySyncResponse{}, err
	}
	return PublicKeySyncResponse{PublicKey: []byte(pub), Signature: sig}, nil
}

// GenesisVoteResponse carries a proposer's candidate genesis hashes
// (its genesis's parentHashes followed by its genesis hash) together
// with a signature over their concatenation.
type GenesisVoteResponse struct {
	Hashes    []string
	Signature string
}

func EncodeGenesisVoteResponse(m GenesisVoteResponse) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, wire.ByteOrder, uint64(len(m.Hashes))); err != nil {
		return nil, err
	}
	for _, h := range m.Hashes {
		if err := wire.WriteString(&buf, h); err != nil {
			return nil, err
		}
	}
	if err := wire.WriteString(&buf, m.Signature); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeGenesisVoteResponse(raw []byte) (GenesisVoteResponse, error) {
	buf := bytes.NewReader(raw)

	var n uint64
	if err := binary.Read(buf, wire.ByteOrder, &n); err != nil {
		return GenesisVoteResponse{}, err
	}

	hashes := make([]string, n)
	for i := range hashes {
		h, err := wire.ReadString(buf)
		if err != nil {
			return GenesisVoteResponse{}, err
		}
		hashes[i] = h
	}

	sig, err := wire.ReadString(buf)
	if err != nil {
		return GenesisVoteResponse{}, err
	}

	return GenesisVoteResponse{Hashes: hashes, Signature: sig}, nil
}

// SyncGenesisMessage is SyncGenesisRequest's payload: the genesis's
// claimed hash (which may legitimately differ from its own recomputed
// hash, for a pruning-alias genesis), the actual recomputed hash, a
// signature over their concatenation, and the transaction itself.
type SyncGenesisMessage struct {
	ClaimedHash string
	ActualHash  string
	Signature   string
	Transaction transaction.Transaction
}

func EncodeSyncGenesisMessage(m SyncGenesisMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.WriteString(&buf, m.ClaimedHash); err != nil {
		return nil, err
	}
	if err := wire.WriteString(&buf, m.ActualHash); err != nil {
		return nil, err
	}
	if err := wire.WriteString(&buf, m.Signature); err != nil {
		return nil, err
	}
	if err := wire.EncodeTransaction(&buf, m.Transaction); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeSyncGenesisMessage(raw []byte) (SyncGenesisMessage, error) {
	buf := bytes.NewReader(raw)

	claimed, err := wire.ReadString(buf)
	if err != nil {
		return SyncGenesisMessage{}, err
	}
	actual, err := wire.ReadString(buf)
	if err != nil {
		return SyncGenesisMessage{}, err
	}
	sig, err := wire.ReadString(buf)
	if err != nil {
		return SyncGenesisMessage{}, err
	}
	tx, err := wire.DecodeTransaction(buf)
	if err != nil {
		return SyncGenesisMessage{}, err
	}

	return SyncGenesisMessage{ClaimedHash: claimed, ActualHash: actual, Signature: sig, Transaction: tx}, nil
}

// TransactionMessage is the payload shared by AddTransactionRequest and
// SynchronizationAddTransactionRequest: a validity hash (the claimed
// transaction hash), a signature over it, and the transaction itself.
type TransactionMessage struct {
	ValidityHash string
	Signature    string
	Transaction  transaction.Transaction
}

func EncodeTransactionMessage(m TransactionMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.WriteString(&buf, m.ValidityHash); err != nil {
		return nil, err
	}
	if err := wire.WriteString(&buf, m.Signature); err != nil {
		return nil, err
	}
	if err := wire.EncodeTransaction(&buf, m.Transaction); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeTransactionMessage(raw []byte) (TransactionMessage, error) {
	buf := bytes.NewReader(raw)

	validity, err := wire.ReadString(buf)
	if err != nil {
		return TransactionMessage{}, err
	}
	sig, err := wire.ReadString(buf)
	if err != nil {
		return TransactionMessage{}, err
	}
	tx, err := wire.DecodeTransaction(buf)
	if err != nil {
		return TransactionMessage{}, err
	}

	return TransactionMessage{ValidityHash: validity, Signature: sig, Transaction: tx}, nil
}

// signHashes produces the signature GenesisVoteResponse expects: the
// concatenation of hashes, signed and base64-encoded.
func signHashes(pri *crypto.PrivateKey, hashes []string) (string, error) {
	return crypto.SignString(pri, strings.Join(hashes, ""))
}

// sortedVoteKey canonicalizes a hash list into the map key
// genesisVotes is keyed by: sorted, joined with a separator that
// cannot appear inside a hash (hashes are base64, which never
// contains '|').
func sortedVoteKey(hashes []string) string {
	sorted := append([]string(nil), hashes...)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}
