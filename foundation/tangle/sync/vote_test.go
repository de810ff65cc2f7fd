package sync

import (
	"testing"

	"github.com/google/uuid"
)

func TestVoteTracker_IgnoresVotesWhenInactive(t *testing.T) {
	vt := newVoteTracker()

	if _, done := vt.record([]string{"a"}, uuid.New(), 3); done {
		t.Fatal("expected no decision while inactive")
	}
}

func TestVoteTracker_MajorityDecides(t *testing.T) {
	vt := newVoteTracker()
	vt.start()

	proposer := uuid.New()
	hashes := []string{"gen", "a"}

	// 3 peers total; a single voter crossing count > 3/2 = 1 decides.
	if _, done := vt.record(hashes, proposer, 3); done {
		t.Fatal("one vote of three should not yet decide")
	}
	winner, done := vt.record(hashes, proposer, 3)
	if !done {
		t.Fatal("two matching votes of three should decide")
	}
	if winner.proposer != proposer {
		t.Fatalf("winner.proposer = %s, want %s", winner.proposer, proposer)
	}
}

func TestVoteTracker_PluralityOnTotalVotesDecides(t *testing.T) {
	vt := newVoteTracker()
	vt.start()

	peerCount := 3
	a := uuid.New()
	b := uuid.New()

	// Two distinct, non-majority hash sets; total votes reaching
	// peerCount-1 should still force a decision.
	if _, done := vt.record([]string{"x"}, a, peerCount); done {
		t.Fatal("one vote should not yet decide")
	}
	_, done := vt.record([]string{"y"}, b, peerCount)
	if !done {
		t.Fatal("total votes reaching peerCount-1 should decide")
	}
}

func TestVoteTracker_PluralityPicksHighestCountNotFirstSeen(t *testing.T) {
	vt := newVoteTracker()
	vt.start()

	peerCount := 5
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	// No single hash crosses the majority threshold (count > 2), so
	// the decision must come from the total-votes-reached-peerCount-1
	// branch, which must pick the plurality (highest-count) candidate
	// rather than whichever map entry Go's randomized iteration visits
	// first.
	vt.record([]string{"a"}, a, peerCount)
	vt.record([]string{"b"}, b, peerCount)
	vt.record([]string{"c"}, c, peerCount)
	winner, done := vt.record([]string{"a"}, a, peerCount)
	if !done {
		t.Fatal("total votes reaching peerCount-1 should decide")
	}
	if winner.count != 2 {
		t.Fatalf("winner.count = %d, want 2 (the plurality candidate)", winner.count)
	}
	if winner.hashes[0] != "a" {
		t.Fatalf("winner.hashes = %v, want the \"a\" candidate with 2 votes", winner.hashes)
	}
}

func TestVoteTracker_StopClearsState(t *testing.T) {
	vt := newVoteTracker()
	vt.start()
	if !vt.isActive() {
		t.Fatal("expected active after start")
	}
	vt.stop()
	if vt.isActive() {
		t.Fatal("expected inactive after stop")
	}
}
