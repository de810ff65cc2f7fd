package graph_test

import (
	"testing"

	"github.com/adamwoolhether/tangle/foundation/crypto"
	"github.com/adamwoolhether/tangle/foundation/tangle/graph"
	"github.com/adamwoolhether/tangle/foundation/tangle/node"
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

// fundedTangle builds a tangle whose genesis credits account with
// supply. Add rejects any transaction whose outputs exceed its inputs,
// so the genesis is where value enters the ledger.
func fundedTangle(t *testing.T, account *crypto.PublicKey, supply float64) *graph.Tangle {
	t.Helper()

	tg := graph.New(graph.Config{})
	tg.SetGenesis(node.New(nil, nil, []transaction.Output{{Account: account, Amount: supply}}, 0))

	return tg
}

// fundedNode builds and mines a node crediting account with amount,
// paid for by funder, approving the given parents.
func fundedNode(t *testing.T, parents []*node.TransactionNode, funder crypto.KeyPair, account *crypto.PublicKey, amount float64) *node.TransactionNode {
	t.Helper()

	sig, err := transaction.SignInput(funder.Private, amount)
	if err != nil {
		t.Fatalf("signing input: %s", err)
	}

	n := node.New(
		parents,
		[]transaction.Input{{Account: funder.Public, Amount: amount, Signature: sig}},
		[]transaction.Output{{Account: account, Amount: amount}},
		1,
	)
	n.Mine()

	return n
}

func TestTangle_AddAndFind(t *testing.T) {
	bank := mustKeyPair(t)
	tg := fundedTangle(t, bank.Public, 1000)
	kp := mustKeyPair(t)

	gen := tg.Genesis()
	n := fundedNode(t, []*node.TransactionNode{gen}, bank, kp.Public, 100)

	if _, err := tg.Add(n); err != nil {
		t.Fatalf("Add: unexpected error: %s", err)
	}

	if got := tg.Find(n.Hash); got == nil || got.Hash != n.Hash {
		t.Fatalf("Find(%q) did not return the inserted node", n.Hash)
	}
}

func TestTangle_Add_RejectsUnknownParent(t *testing.T) {
	bank := mustKeyPair(t)
	tg := fundedTangle(t, bank.Public, 1000)
	kp := mustKeyPair(t)

	orphanParent := node.NewGenesis()
	n := fundedNode(t, []*node.TransactionNode{orphanParent}, bank, kp.Public, 10)

	_, err := tg.Add(n)
	if err == nil {
		t.Fatal("expected an error adding a node with an unresolved parent")
	}

	if _, ok := err.(*graph.NodeNotFound); !ok {
		t.Fatalf("expected *graph.NodeNotFound, got %T: %v", err, err)
	}
}

func TestTangle_Add_RejectsOverspend(t *testing.T) {
	tg := graph.New(graph.Config{})
	kp := mustKeyPair(t)

	gen := tg.Genesis()

	sig, err := transaction.SignInput(kp.Private, 100)
	if err != nil {
		t.Fatalf("signing input: %s", err)
	}

	spend := node.New(
		[]*node.TransactionNode{gen},
		[]transaction.Input{{Account: kp.Public, Amount: 100, Signature: sig}},
		nil,
		1,
	)
	spend.Mine()

	if _, err := tg.Add(spend); err == nil {
		t.Fatal("expected overspend (account has zero balance) to be rejected")
	}
}

func TestTangle_RemoveTip(t *testing.T) {
	bank := mustKeyPair(t)
	tg := fundedTangle(t, bank.Public, 1000)
	kp := mustKeyPair(t)

	gen := tg.Genesis()
	n := fundedNode(t, []*node.TransactionNode{gen}, bank, kp.Public, 5)

	if _, err := tg.Add(n); err != nil {
		t.Fatalf("Add: unexpected error: %s", err)
	}

	if err := tg.RemoveTip(gen); err == nil {
		t.Fatal("expected removing a non-tip (genesis still has a child) to fail")
	}

	if err := tg.RemoveTip(n); err != nil {
		t.Fatalf("RemoveTip: unexpected error: %s", err)
	}

	if tg.Find(n.Hash) != nil {
		t.Fatal("removed tip is still findable")
	}
}

func TestTangle_QueryBalance(t *testing.T) {
	bank := mustKeyPair(t)
	tg := fundedTangle(t, bank.Public, 1000)
	kp := mustKeyPair(t)

	gen := tg.Genesis()
	credit := fundedNode(t, []*node.TransactionNode{gen}, bank, kp.Public, 50)
	if _, err := tg.Add(credit); err != nil {
		t.Fatalf("Add credit: unexpected error: %s", err)
	}

	balance, err := tg.QueryBalance(crypto.AccountIDFromPublicKey(kp.Public), 0)
	if err != nil {
		t.Fatalf("QueryBalance: unexpected error: %s", err)
	}
	if balance != 50 {
		t.Fatalf("balance = %v, want 50", balance)
	}

	sig, err := transaction.SignInput(kp.Private, 20)
	if err != nil {
		t.Fatalf("signing input: %s", err)
	}

	other := mustKeyPair(t)
	spend := node.New(
		[]*node.TransactionNode{credit},
		[]transaction.Input{{Account: kp.Public, Amount: 20, Signature: sig}},
		[]transaction.Output{{Account: other.Public, Amount: 20}},
		1,
	)
	spend.Mine()
	if _, err := tg.Add(spend); err != nil {
		t.Fatalf("Add spend: unexpected error: %s", err)
	}

	balance, err = tg.QueryBalance(crypto.AccountIDFromPublicKey(kp.Public), 0)
	if err != nil {
		t.Fatalf("QueryBalance after spend: unexpected error: %s", err)
	}
	if balance != 30 {
		t.Fatalf("balance after spend = %v, want 30", balance)
	}
}

func TestTangle_CreateAndMine(t *testing.T) {
	bank := mustKeyPair(t)
	tg := fundedTangle(t, bank.Public, 1000)
	kp := mustKeyPair(t)

	gen := tg.Genesis()
	n := fundedNode(t, []*node.TransactionNode{gen}, bank, kp.Public, 1)
	if _, err := tg.Add(n); err != nil {
		t.Fatalf("Add: unexpected error: %s", err)
	}

	built, err := tg.CreateAndMine(nil, nil, 1)
	if err != nil {
		t.Fatalf("CreateAndMine: unexpected error: %s", err)
	}

	if !built.ValidateTransactionMined() {
		t.Fatal("CreateAndMine returned a node that does not satisfy its own mining target")
	}
	if len(built.Parents) == 0 {
		t.Fatal("CreateAndMine returned a node with no parents")
	}
}

// TestTangle_Add_TwoParentNodeIsASingleTip guards against appending the
// newly added node to tips once per approved parent: a node approving
// two parents must still appear in Tips() exactly once.
func TestTangle_Add_TwoParentNodeIsASingleTip(t *testing.T) {
	bank := mustKeyPair(t)
	tg := fundedTangle(t, bank.Public, 1000)
	kp := mustKeyPair(t)

	gen := tg.Genesis()
	n1 := fundedNode(t, []*node.TransactionNode{gen}, bank, kp.Public, 1)
	if _, err := tg.Add(n1); err != nil {
		t.Fatalf("Add n1: unexpected error: %s", err)
	}

	n2 := fundedNode(t, []*node.TransactionNode{gen}, bank, kp.Public, 1)
	if _, err := tg.Add(n2); err != nil {
		t.Fatalf("Add n2: unexpected error: %s", err)
	}

	n3 := fundedNode(t, []*node.TransactionNode{n1, n2}, bank, kp.Public, 1)
	if _, err := tg.Add(n3); err != nil {
		t.Fatalf("Add n3: unexpected error: %s", err)
	}

	tips := tg.Tips()
	if len(tips) != 1 {
		t.Fatalf("Tips() after a two-parent add = %d entries, want 1: %v", len(tips), tips)
	}
	if tips[0].Hash != n3.Hash {
		t.Fatalf("Tips()[0].Hash = %s, want %s", tips[0].Hash, n3.Hash)
	}

	if err := tg.RemoveTip(n3); err != nil {
		t.Fatalf("RemoveTip: unexpected error removing the sole tip: %s", err)
	}
	if len(tg.Tips()) != 2 {
		t.Fatalf("Tips() after removing n3 = %d entries, want 2 (n1 and n2 re-exposed)", len(tg.Tips()))
	}
}
