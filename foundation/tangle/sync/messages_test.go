package sync

import (
	"testing"

	"github.com/adamwoolhether/tangle/foundation/crypto"
	"github.com/adamwoolhether/tangle/foundation/tangle/transaction"
)

func mustKeyPair(t *testing.T) crypto.KeyPair {
	t.Helper()

	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generating key pair: %s", err)
	}

	return kp
}

func TestPublicKeySyncResponse_RoundTrips(t *testing.T) {
	kp := mustKeyPair(t)

	sig, err := crypto.SignString(kp.Private, VerificationProbe)
	if err != nil {
		t.Fatalf("signing probe: %s", err)
	}

	raw, err := EncodePublicKeySyncResponse(PublicKeySyncResponse{
		PublicKey: crypto.PublicKeyBytes(kp.Public),
		Signature: sig,
	})
	if err != nil {
		t.Fatalf("encoding: %s", err)
	}

	got, err := DecodePublicKeySyncResponse(raw)
	if err != nil {
		t.Fatalf("decoding: %s", err)
	}

	pub, err := crypto.PublicKeyFromBytes(got.PublicKey)
	if err != nil {
		t.Fatalf("unmarshalling decoded public key: %s", err)
	}
	if !crypto.VerifyString(pub, VerificationProbe, got.Signature) {
		t.Fatal("round-tripped response failed to verify")
	}
}

func TestGenesisVoteResponse_RoundTrips(t *testing.T) {
	kp := mustKeyPair(t)
	hashes := []string{"p1", "p2", "genesis-hash"}

	sig, err := signHashes(kp.Private, hashes)
	if err != nil {
		t.Fatalf("signing hashes: %s", err)
	}

	raw, err := EncodeGenesisVoteResponse(GenesisVoteResponse{Hashes: hashes, Signature: sig})
	if err != nil {
		t.Fatalf("encoding: %s", err)
	}

	got, err := DecodeGenesisVoteResponse(raw)
	if err != nil {
		t.Fatalf("decoding: %s", err)
	}

	if len(got.Hashes) != len(hashes) {
		t.Fatalf("got %d hashes, want %d", len(got.Hashes), len(hashes))
	}
	for i := range hashes {
		if got.Hashes[i] != hashes[i] {
			t.Errorf("hashes[%d] = %q, want %q", i, got.Hashes[i], hashes[i])
		}
	}
}

func TestSyncGenesisMessage_RoundTrips(t *testing.T) {
	tx := transaction.Construct(nil, nil, nil, 0)

	raw, err := EncodeSyncGenesisMessage(SyncGenesisMessage{
		ClaimedHash: "claimed",
		ActualHash:  tx.Hash,
		Signature:   "sig",
		Transaction: tx,
	})
	if err != nil {
		t.Fatalf("encoding: %s", err)
	}

	got, err := DecodeSyncGenesisMessage(raw)
	if err != nil {
		t.Fatalf("decoding: %s", err)
	}

	if got.ClaimedHash != "claimed" || got.ActualHash != tx.Hash {
		t.Fatalf("got claimed=%q actual=%q, want claimed=%q actual=%q", got.ClaimedHash, got.ActualHash, "claimed", tx.Hash)
	}
	if got.Transaction.Hash != tx.Hash {
		t.Fatalf("decoded transaction hash = %q, want %q", got.Transaction.Hash, tx.Hash)
	}
}

func TestTransactionMessage_RoundTrips(t *testing.T) {
	tx := transaction.Construct(nil, nil, nil, 0)

	raw, err := EncodeTransactionMessage(TransactionMessage{
		ValidityHash: tx.Hash,
		Signature:    "sig",
		Transaction:  tx,
	})
	if err != nil {
		t.Fatalf("encoding: %s", err)
	}

	got, err := DecodeTransactionMessage(raw)
	if err != nil {
		t.Fatalf("decoding: %s", err)
	}

	if got.ValidityHash != tx.Hash {
		t.Fatalf("ValidityHash = %q, want %q", got.ValidityHash, tx.Hash)
	}
	if got.Transaction.Hash != tx.Hash {
		t.Fatalf("decoded transaction hash = %q, want %q", got.Transaction.Hash, tx.Hash)
	}
}

func TestSortedVoteKey_OrderIndependent(t *testing.T) {
	a := sortedVoteKey([]string{"b", "a", "c"})
	b := sortedVoteKey([]string{"c", "b", "a"})
	if a != b {
		t.Fatalf("sortedVoteKey not order-independent: %q != %q", a, b)
	}
}
