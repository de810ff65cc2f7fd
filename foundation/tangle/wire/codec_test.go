package wire_test

import (
	"bytes"
	"testing"

	"github.com/adamwoolhether/tangle/foundation/crypto"
	"github.com/adamwoolhether/tangle/foundation/tangle/transaction"
	"github.com/adamwoolhether/tangle/foundation/tangle/wire"
)

func mustKeyPair(t *testing.T) crypto.KeyPair {
	t.Helper()

	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generating key pair: %s", err)
	}

	return kp
}

func TestEncodeDecodeTransaction_RoundTrips(t *testing.T) {
	kp := mustKeyPair(t)

	sig, err := transaction.SignInput(kp.Private, 42)
	if err != nil {
		t.Fatalf("signing input: %s", err)
	}

	tx := transaction.Construct(
		[]string{"parentA", "parentB"},
		[]transaction.Input{{Account: kp.Public, Amount: 42, Signature: sig}},
		[]transaction.Output{{Account: kp.Public, Amount: 42}},
		1,
	)

	var buf bytes.Buffer
	if err := wire.EncodeTransaction(&buf, tx); err != nil {
		t.Fatalf("EncodeTransaction: unexpected error: %s", err)
	}

	decoded, err := wire.DecodeTransaction(&buf)
	if err != nil {
		t.Fatalf("DecodeTransaction: unexpected error: %s", err)
	}

	if decoded.Hash != tx.Hash {
		t.Fatalf("decoded hash %q != original hash %q", decoded.Hash, tx.Hash)
	}
	if len(decoded.ParentHashes) != 2 || decoded.ParentHashes[0] != "parentA" || decoded.ParentHashes[1] != "parentB" {
		t.Fatalf("parent hashes did not round-trip: %v", decoded.ParentHashes)
	}
	if len(decoded.Inputs) != 1 || decoded.Inputs[0].Amount != 42 {
		t.Fatalf("inputs did not round-trip: %v", decoded.Inputs)
	}
	if len(decoded.Outputs) != 1 || decoded.Outputs[0].Amount != 42 {
		t.Fatalf("outputs did not round-trip: %v", decoded.Outputs)
	}
}

func TestEncodeDecodeTangleFile_RoundTrips(t *testing.T) {
	kp := mustKeyPair(t)

	genesis := transaction.Construct(nil, nil, []transaction.Output{{Account: kp.Public, Amount: 1000}}, 0)
	child := transaction.Construct([]string{genesis.Hash}, nil, []transaction.Output{{Account: kp.Public, Amount: 1}}, 1)
	child.Mine()

	var buf bytes.Buffer
	if err := wire.EncodeTangleFile(&buf, genesis, []transaction.Transaction{child}); err != nil {
		t.Fatalf("EncodeTangleFile: unexpected error: %s", err)
	}

	decodedGenesis, rest, err := wire.DecodeTangleFile(&buf)
	if err != nil {
		t.Fatalf("DecodeTangleFile: unexpected error: %s", err)
	}

	if decodedGenesis.Hash != genesis.Hash {
		t.Fatalf("decoded genesis hash %q != original %q", decodedGenesis.Hash, genesis.Hash)
	}
	if len(rest) != 1 || rest[0].Hash != child.Hash {
		t.Fatalf("decoded rest transactions did not round-trip: %v", rest)
	}
}
