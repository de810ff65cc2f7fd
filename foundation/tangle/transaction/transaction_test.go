package transaction_test

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

func TestConstruct_DedupesAndSortsParents(t *testing.T) {
	parents := []string{"b", "a", "b", "c", "a"}

	tx := transaction.Construct(parents, nil, nil, 0)

	want := []string{"a", "b", "c"}
	if len(tx.ParentHashes) != len(want) {
		t.Fatalf("got %d parent hashes, want %d", len(tx.ParentHashes), len(want))
	}
	for i := range want {
		if tx.ParentHashes[i] != want[i] {
			t.Errorf("parentHashes[%d] = %q, want %q", i, tx.ParentHashes[i], want[i])
		}
	}
}

func TestHashTransaction_ReproducesStoredHash(t *testing.T) {
	tx := transaction.Construct([]string{"p1", "p2"}, nil, nil, 0)

	if got := tx.HashTransaction(); got != tx.Hash {
		t.Fatalf("recomputed hash %q does not match stored hash %q", got, tx.Hash)
	}
}

func TestMine_SatisfiesTarget(t *testing.T) {
	tx := transaction.Construct(nil, nil, nil, 1)

	tx.Mine()

	if !tx.ValidateTransactionMined() {
		t.Fatal("transaction did not validate as mined after Mine()")
	}
}

func TestValidateTransaction_DetectsTamperedAmount(t *testing.T) {
	kp := mustKeyPair(t)

	sig, err := transaction.SignInput(kp.Private, 100)
	if err != nil {
		t.Fatalf("signing input: %s", err)
	}

	tx := transaction.Construct(nil, []transaction.Input{
		{Account: kp.Public, Amount: 100, Signature: sig},
	}, []transaction.Output{
		{Account: kp.Public, Amount: 100},
	}, 0)

	if err := tx.ValidateTransaction(); err != nil {
		t.Fatalf("unexpected validation error: %s", err)
	}

	// Tamper with the output amount without rehashing; recomputing the
	// hash must now disagree with the stored hash.
	tx.Outputs[0].Amount = 999

	err = tx.ValidateTransaction()
	if err == nil {
		t.Fatal("expected validation to fail after tampering, got nil error")
	}

	var invalidHash *transaction.InvalidHash
	if !asInvalidHash(err, &invalidHash) {
		t.Fatalf("expected *transaction.InvalidHash, got %T: %v", err, err)
	}
}

func asInvalidHash(err error, target **transaction.InvalidHash) bool {
	ih, ok := err.(*transaction.InvalidHash)
	if !ok {
		return false
	}
	*target = ih
	return true
}

func TestValidateTransactionTotals(t *testing.T) {
	kp := mustKeyPair(t)

	tests := []struct {
		name    string
		inputs  []transaction.Input
		outputs []transaction.Output
		want    bool
	}{
		{
			name:    "inputs equal outputs",
			inputs:  []transaction.Input{{Account: kp.Public, Amount: 100}},
			outputs: []transaction.Output{{Account: kp.Public, Amount: 100}},
			want:    true,
		},
		{
			name:    "inputs exceed outputs",
			inputs:  []transaction.Input{{Account: kp.Public, Amount: 150}},
			outputs: []transaction.Output{{Account: kp.Public, Amount: 100}},
			want:    true,
		},
		{
			name:    "outputs exceed inputs",
			inputs:  []transaction.Input{{Account: kp.Public, Amount: 50}},
			outputs: []transaction.Output{{Account: kp.Public, Amount: 100}},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := transaction.Construct(nil, tt.inputs, tt.outputs, 0)
			if got := tx.ValidateTransactionTotals(); got != tt.want {
				t.Errorf("ValidateTransactionTotals() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOwnWeight(t *testing.T) {
	tests := []struct {
		difficulty uint8
		want       float32
	}{
		{difficulty: 0, want: 0},
		{difficulty: 5, want: 1},
		{difficulty: 10, want: 1},
		{difficulty: 2, want: 0.4},
	}

	for _, tt := range tests {
		tx := transaction.Transaction{MiningDifficulty: tt.difficulty}
		if got := tx.OwnWeight(); got != tt.want {
			t.Errorf("OwnWeight(difficulty=%d) = %v, want %v", tt.difficulty, got, tt.want)
		}
	}
}
