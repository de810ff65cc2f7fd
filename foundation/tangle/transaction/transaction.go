// Package transaction implements the immutable, self-hashed, mined
// payload that makes up every node in the tangle: inputs, outputs, and
// the proof-of-work that secures it.
package transaction

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/adamwoolhether/tangle/foundation/crypto"
)

// defaultMiningTarget is the byte repeated miningDifficulty times at
// the start of the proof-of-work target string; a mined hash must rank
// at or below that target in the base-64 numeric order.
const defaultMiningTarget = 'A'

// InvalidHash is raised whenever a deserialized (or otherwise untrusted)
// transaction's stored hash disagrees with its recomputed hash.
type InvalidHash struct {
	Actual  string
	Claimed string
}

func (e *InvalidHash) Error() string {
	return fmt.Sprintf("transaction hash mismatch: claimed %q, actual %q", e.Claimed, e.Actual)
}

// Output is a destination account and the amount credited to it.
type Output struct {
	Account *crypto.PublicKey
	Amount  float64
}

// contrib is this output's contribution to a transaction's hash:
// base64(bytes(account)) || amount.
func (o Output) contrib() string {
	return crypto.PublicKeyBase64(o.Account) + AmountString(o.Amount)
}

// Input is a source account, the amount it contributes, and that
// account's signature authorizing the contribution.
type Input struct {
	Account   *crypto.PublicKey
	Amount    float64
	Signature string
}

// contrib is this input's contribution to a transaction's hash:
// output.contrib || signature.
func (i Input) contrib() string {
	return crypto.PublicKeyBase64(i.Account) + AmountString(i.Amount) + i.Signature
}

// AccountID returns the account hash this input is signed by.
func (i Input) AccountID() crypto.AccountID {
	return crypto.AccountIDFromPublicKey(i.Account)
}

// AccountID returns the account hash this output credits.
func (o Output) AccountID() crypto.AccountID {
	return crypto.AccountIDFromPublicKey(o.Account)
}

// AmountString renders an amount the same way across hashing, signing,
// and display, matching the original's std::to_string(double) contract
// that every input signature is computed over.
func AmountString(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// SignInput produces the signature a caller must attach to an Input:
// the ECDSA signature of AmountString(amount) under the account's
// private key.
func SignInput(pri *crypto.PrivateKey, amount float64) (string, error) {
	return crypto.SignString(pri, AmountString(amount))
}

// Transaction is an immutable, self-hashed, mined ledger entry. All
// fields contribute to Hash; once constructed (via Construct or Mine)
// a Transaction is mutated only by Mine incrementing Nonce and
// recomputing Hash, and by the two genesis paths that declare a Hash
// rather than derive it: pruning (which also sets ParentHashes) and
// genesis sync.
type Transaction struct {
	Timestamp        int64
	Nonce            uint64
	MiningDifficulty uint8
	MiningTarget     byte
	Inputs           []Input
	Outputs          []Output
	ParentHashes     []string
	Hash             string
}

// Construct builds a new Transaction: it captures the current UTC
// timestamp, seeds the nonce from the CSPRNG, deduplicates and sorts
// the parent hashes, and computes the hash. The result is not yet
// mined; call Mine to satisfy the proof-of-work target.
func Construct(parentHashes []string, inputs []Input, outputs []Output, difficulty uint8) Transaction {
	tx := Transaction{
		Timestamp:        time.Now().UTC().Unix(),
		Nonce:            uint64(crypto.Word32()) + uint64(crypto.Word32()),
		MiningDifficulty: difficulty,
		MiningTarget:     defaultMiningTarget,
		Inputs:           inputs,
		Outputs:          outputs,
		ParentHashes:     dedupeSortedHashes(parentHashes),
	}
	tx.Hash = tx.HashTransaction()

	return tx
}

// dedupeSortedHashes deduplicates and lexicographically sorts hashes,
// per §3's construction-time parent-hash normalization.
func dedupeSortedHashes(hashes []string) []string {
	seen := make(map[string]struct{}, len(hashes))
	out := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}

	sort.Strings(out)

	return out
}

// HashTransaction recomputes the transaction's hash from its current
// fields: SHA3-256_b64(timestamp || nonce || inputs' contributions ||
// outputs' contributions || parentHashes).
func (t Transaction) HashTransaction() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%d", t.Timestamp)
	fmt.Fprintf(&b, "%d", t.Nonce)
	for _, in := range t.Inputs {
		b.WriteString(in.contrib())
	}
	for _, out := range t.Outputs {
		b.WriteString(out.contrib())
	}
	for _, h := range t.ParentHashes {
		b.WriteString(h)
	}

	return crypto.HashString(b.String())
}

// ValidateTransaction checks that the stored hash matches a fresh
// recomputation, and that every input's signature verifies.
func (t Transaction) ValidateTransaction() error {
	if recomputed := t.HashTransaction(); recomputed != t.Hash {
		return &InvalidHash{Actual: recomputed, Claimed: t.Hash}
	}

	for _, in := range t.Inputs {
		if !crypto.VerifyString(in.Account, AmountString(in.Amount), in.Signature) {
			return fmt.Errorf("transaction %s: input signature for account %s failed to verify", t.Hash, in.AccountID())
		}
	}

	return nil
}

// ValidateTransactionTotals checks that the sum of inputs is at least
// the sum of outputs.
func (t Transaction) ValidateTransactionTotals() bool {
	var in, out float64
	for _, i := range t.Inputs {
		in += i.Amount
	}
	for _, o := range t.Outputs {
		out += o.Amount
	}

	return in >= out
}

// targetString builds the proof-of-work target: miningDifficulty copies
// of miningTarget followed by hash.len - miningDifficulty copies of '/'.
func (t Transaction) targetString() string {
	var b strings.Builder

	for i := uint8(0); i < t.MiningDifficulty; i++ {
		b.WriteByte(t.MiningTarget)
	}
	for i := len(t.Hash) - int(t.MiningDifficulty); i > 0; i-- {
		b.WriteByte('/')
	}

	return b.String()
}

// ValidateTransactionMined checks that the hash, interpreted as a
// base-64 number, is at most the mining target.
func (t Transaction) ValidateTransactionMined() bool {
	if int(t.MiningDifficulty) > len(t.Hash) {
		return false
	}

	cmp, err := crypto.CompareBase64Numeric(t.Hash, t.targetString())
	if err != nil {
		return false
	}

	return cmp <= 0
}

// Mine repeatedly increments Nonce and rehashes until
// ValidateTransactionMined holds. It returns the elapsed mining time.
// There is no upper bound on attempts; callers choose the difficulty.
func (t *Transaction) Mine() time.Duration {
	start := time.Now()

	for !t.ValidateTransactionMined() {
		t.Nonce++
		t.Hash = t.HashTransaction()
	}

	return time.Since(start)
}

// OwnWeight is this transaction's contribution to cumulative weight:
// min(difficulty/5, 1).
func (t Transaction) OwnWeight() float32 {
	w := float32(t.MiningDifficulty) / 5
	if w > 1 {
		return 1
	}

	return w
}
