package sync

import (
	"sync"

	"github.com/google/uuid"
)

// voteEntry tallies the votes cast so far for one candidate hash list.
type voteEntry struct {
	hashes   []string
	proposer uuid.UUID
	count    int
}

// voteTracker accumulates GenesisVoteResponse replies while a genesis
// vote is in progress. It is present only during voting, mirroring
// §4.7's "genesisVotes: ... present only while voting."
type voteTracker struct {
	mu     sync.Mutex
	active bool
	votes  map[string]*voteEntry
}

func newVoteTracker() *voteTracker {
	return &voteTracker{}
}

// start begins a new voting round, discarding any prior tally.
func (vt *voteTracker) start() {
	vt.mu.Lock()
	defer vt.mu.Unlock()

	vt.active = true
	vt.votes = make(map[string]*voteEntry)
}

// stop ends the current voting round.
func (vt *voteTracker) stop() {
	vt.mu.Lock()
	defer vt.mu.Unlock()

	vt.active = false
	vt.votes = nil
}

// isActive reports whether a vote is currently in progress.
func (vt *voteTracker) isActive() bool {
	vt.mu.Lock()
	defer vt.mu.Unlock()

	return vt.active
}

// record registers one GenesisVoteResponse. If the round is not
// active, the vote is ignored. If the recorded vote (or the total
// votes cast) crosses the majority/plurality threshold relative to
// peerCount, record returns the winning entry and true.
func (vt *voteTracker) record(hashes []string, proposer uuid.UUID, peerCount int) (*voteEntry, bool) {
	vt.mu.Lock()
	defer vt.mu.Unlock()

	if !vt.active {
		return nil, false
	}

	key := sortedVoteKey(hashes)
	e, ok := vt.votes[key]
	if !ok {
		e = &voteEntry{hashes: hashes, proposer: proposer}
		vt.votes[key] = e
	}
	e.count++

	var total int
	for _, v := range vt.votes {
		total += v.count
		if v.count > peerCount/2 {
			return v, true
		}
	}

	if total >= peerCount-1 {
		var winner *voteEntry
		for _, v := range vt.votes {
			if winner == nil || v.count > winner.count {
				winner = v
			}
		}

		return winner, true
	}

	return nil, false
}
