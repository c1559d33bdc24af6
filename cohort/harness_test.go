package cohort

import (
	"testing"

	"raftsim/raft"
)

func runUntilLeader(t *testing.T, c *Cohort, maxIterations int) *raft.Node {
	t.Helper()
	for i := 0; i < maxIterations; i++ {
		c.Iterate()
		for _, n := range c.Nodes() {
			if n.Snapshot().Role == raft.Leader {
				return n
			}
		}
	}
	return nil
}

func countRole(c *Cohort, role raft.Role) int {
	count := 0
	for _, n := range c.Nodes() {
		if n.Snapshot().Role == role {
			count++
		}
	}
	return count
}

// A freshly constructed node is a follower, term zero, empty log, no
// vote, no leader.
func TestNewNodeInitialState(t *testing.T) {
	c := NewUniform(1, nil)
	snap := c.Nodes()[0].Snapshot()
	if snap.Role != raft.Follower {
		t.Fatalf("new node role = %v, want Follower", snap.Role)
	}
	if snap.CurrentTerm != 0 {
		t.Fatalf("new node term = %d, want 0", snap.CurrentTerm)
	}
	if len(snap.Log) != 0 {
		t.Fatalf("new node log length = %d, want 0", len(snap.Log))
	}
	if snap.VotedFor != nil {
		t.Fatalf("new node voted_for = %v, want nil", snap.VotedFor)
	}
	if snap.CurrentLeader != nil {
		t.Fatalf("new node current_leader = %v, want nil", snap.CurrentLeader)
	}
}

// A single node, heartbeat/election timeout expires, and it becomes a
// leader of a cohort of one without needing any vote responses (quorum
// of 1 is itself).
func TestSingleNodeBecomesLeader(t *testing.T) {
	c := NewUniform(1, nil)
	leader := runUntilLeader(t, c, 1000)
	if leader == nil {
		t.Fatal("single node never became leader")
	}
}

// Two replicas, an election produces exactly one leader and one
// follower, never two leaders.
func TestTwoNodeElection(t *testing.T) {
	c := NewUniform(2, nil)
	leader := runUntilLeader(t, c, 2000)
	if leader == nil {
		t.Fatal("no leader elected among two nodes")
	}
	if n := countRole(c, raft.Leader); n != 1 {
		t.Fatalf("expected exactly one leader, got %d", n)
	}
}

// A replica that already voted this term denies a second, different
// candidate's request in the same term.
func TestVoteDeniedWhenAlreadyVoted(t *testing.T) {
	c := NewUniform(3, nil)
	voter := c.Nodes()[0]
	a := c.Nodes()[1].ID
	b := c.Nodes()[2].ID

	voter.HandleMessage(raft.VoteRequest{CandidateID: a, Term: 1, LastLogIndex: 0, LastLogTerm: 0})
	if got := voter.Snapshot().VotedFor; got == nil || *got != a {
		t.Fatalf("voter did not record vote for A: %v", got)
	}

	c.Broadcast(raft.VoteRequest{CandidateID: b, Term: 1, LastLogIndex: 0, LastLogTerm: 0})
	// The voter's VoteResponse to A is still at the head of the queue, so
	// B's request is delivered on the second Iterate.
	c.Iterate()
	c.Iterate()
	// Still voted for A: a second VoteRequest from B in the same term must
	// not flip the vote.
	if got := voter.Snapshot().VotedFor; got == nil || *got != a {
		t.Fatalf("voter flipped its vote: %v", got)
	}
}

// A leader crashes (loses volatile state) and rejoins as a follower with
// its term, vote and log untouched.
func TestCrashPreservesDurableState(t *testing.T) {
	c := NewUniform(3, nil)
	leader := runUntilLeader(t, c, 2000)
	if leader == nil {
		t.Fatal("no leader elected")
	}
	before := leader.Snapshot()

	leader.HandleCrash()
	after := leader.Snapshot()

	if after.Role != raft.Follower {
		t.Fatalf("crashed node role = %v, want Follower", after.Role)
	}
	if after.CurrentTerm != before.CurrentTerm {
		t.Fatalf("crash changed term: %d -> %d", before.CurrentTerm, after.CurrentTerm)
	}
	if len(after.Log) != len(before.Log) {
		t.Fatalf("crash changed log length: %d -> %d", len(before.Log), len(after.Log))
	}
	if after.CurrentLeader != nil {
		t.Fatalf("crashed node still believes %v is leader", after.CurrentLeader)
	}
}

// End to end: a command submitted to the elected leader of an N-node
// cohort is the first and only entry in the application sink when the
// leader commits it, and every node eventually advances its
// commit_length.
func TestEndToEndCommit(t *testing.T) {
	c := NewUniform(5, nil)
	leader := runUntilLeader(t, c, 3000)
	if leader == nil {
		t.Fatal("no leader elected")
	}

	want := raft.Command{Type: "PUT", Key: "x", Value: []byte("1")}
	leader.Submit(want)

	var committed []raft.Command
	for i := 0; i < 2000; i++ {
		c.Iterate()
		committed = c.AppMessages()
		if len(committed) > 0 {
			break
		}
	}

	if len(committed) != 1 {
		t.Fatalf("committed stream length = %d, want 1", len(committed))
	}
	if committed[0].Key != want.Key || string(committed[0].Value) != string(want.Value) {
		t.Fatalf("committed command = %+v, want %+v", committed[0], want)
	}

	// Followers learn the new commit length from the leader's next
	// LogRequest, so keep iterating until every node has advanced it.
	for i := 0; i < 2000; i++ {
		behind := false
		for _, n := range c.Nodes() {
			if n.Snapshot().CommitLength == 0 {
				behind = true
			}
		}
		if !behind {
			break
		}
		c.Iterate()
	}

	for _, n := range c.Nodes() {
		snap := n.Snapshot()
		if snap.CommitLength == 0 {
			t.Fatalf("node %s never advanced commit_length", n.ID)
		}
	}
}

// Universal property: at most one leader per term across the whole run,
// even as elections come and go.
func TestAtMostOneLeaderPerTerm(t *testing.T) {
	c := NewUniform(5, nil)
	leadersByTerm := make(map[uint64]map[uint64]bool) // term -> set of leader indices (by position)
	for i := 0; i < 5000; i++ {
		c.Iterate()
		for idx, n := range c.Nodes() {
			snap := n.Snapshot()
			if snap.Role != raft.Leader {
				continue
			}
			if leadersByTerm[snap.CurrentTerm] == nil {
				leadersByTerm[snap.CurrentTerm] = make(map[uint64]bool)
			}
			leadersByTerm[snap.CurrentTerm][uint64(idx)] = true
			if len(leadersByTerm[snap.CurrentTerm]) > 1 {
				t.Fatalf("term %d has more than one leader: %v", snap.CurrentTerm, leadersByTerm[snap.CurrentTerm])
			}
		}
	}
}
