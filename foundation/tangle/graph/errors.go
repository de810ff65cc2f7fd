package graph

import "fmt"

// NodeNotFound is raised when a referenced ancestor is missing from the
// local DAG.
type NodeNotFound struct {
	Hash string
}

func (e *NodeNotFound) Error() string {
	return fmt.Sprintf("node with hash %q not found", e.Hash)
}

// InvalidBalance is raised when a running balance would go negative,
// either while applying a transaction's inputs in Add or while walking
// the DAG in QueryBalance.
type InvalidBalance struct {
	NodeHash string
	Account  string
	Balance  float64
}

func (e *InvalidBalance) Error() string {
	return fmt.Sprintf("account %s would have negative balance %.6f at node %s", e.Account, e.Balance, e.NodeHash)
}

// DuplicateChild is raised when a node being added already appears
// among one of its claimed parents' children.
type DuplicateChild struct {
	ParentHash string
	ChildHash  string
}

func (e *DuplicateChild) Error() string {
	return fmt.Sprintf("node %s is already a child of %s", e.ChildHash, e.ParentHash)
}

// NotATip is raised when RemoveTip is called on a node that still has
// children.
type NotATip struct {
	Hash string
}

func (e *NotATip) Error() string {
	return fmt.Sprintf("node %s is not a tip", e.Hash)
}

// InsufficientTotals is raised when a transaction's outputs exceed its
// inputs.
type InsufficientTotals struct {
	Hash string
}

func (e *InsufficientTotals) Error() string {
	return fmt.Sprintf("transaction %s spends more than its inputs provide", e.Hash)
}

// NotMined is raised when a node's claimed hash doesn't satisfy the
// proof-of-work target for its difficulty.
type NotMined struct {
	Hash string
}

func (e *NotMined) Error() string {
	return fmt.Sprintf("transaction %s does not satisfy its mining difficulty", e.Hash)
}
