package raft

import (
	"testing"

	"github.com/google/uuid"
)

// fakeBus records everything broadcast to it, for assertions, without
// involving the cohort harness.
type fakeBus struct {
	sent []Message
	app  []Command
}

func (b *fakeBus) Broadcast(msg Message) { b.sent = append(b.sent, msg) }
func (b *fakeBus) AddAppMessages(cmds []Command) { b.app = append(b.app, cmds...) }

func newTestNode(bus Bus, peers ...uuid.UUID) *Node {
	n := NewNode(Config{Bus: bus, CohortSize: len(peers) + 1})
	n.SetPeers(peers)
	n.SetCohortSize(len(peers) + 1)
	return n
}

func TestNewNodeDefaults(t *testing.T) {
	n := newTestNode(&fakeBus{})
	snap := n.Snapshot()
	if snap.Role != Follower || snap.CurrentTerm != 0 || len(snap.Log) != 0 || snap.VotedFor != nil {
		t.Fatalf("unexpected initial state: %+v", snap)
	}
}

func TestSubmitIgnoredByFollower(t *testing.T) {
	bus := &fakeBus{}
	n := newTestNode(bus)
	n.Submit(Command{Type: "PUT", Key: "a"})
	if len(n.Snapshot().Log) != 0 {
		t.Fatal("follower accepted a client submission")
	}
}

func TestStartElectionIncrementsTermAndVotesSelf(t *testing.T) {
	bus := &fakeBus{}
	peer := uuid.New()
	n := newTestNode(bus, peer)

	n.startElection()

	snap := n.Snapshot()
	if snap.CurrentTerm != 1 {
		t.Fatalf("term = %d, want 1", snap.CurrentTerm)
	}
	if snap.Role != Candidate {
		t.Fatalf("role = %v, want Candidate", snap.Role)
	}
	if snap.VotedFor == nil || *snap.VotedFor != n.ID {
		t.Fatalf("did not vote for self: %v", snap.VotedFor)
	}
	if len(bus.sent) != 1 {
		t.Fatalf("expected 1 broadcast VoteRequest, got %d", len(bus.sent))
	}
	if _, ok := bus.sent[0].(VoteRequest); !ok {
		t.Fatalf("expected VoteRequest, got %T", bus.sent[0])
	}
}

func TestHandleCrashPreservesDurableFieldsOnly(t *testing.T) {
	bus := &fakeBus{}
	peer := uuid.New()
	n := newTestNode(bus, peer)
	n.startElection()
	n.becomeLeader()

	n.HandleCrash()

	snap := n.Snapshot()
	if snap.Role != Follower {
		t.Fatalf("role after crash = %v, want Follower", snap.Role)
	}
	if snap.CurrentLeader != nil {
		t.Fatal("current_leader not cleared on crash")
	}
	if snap.CurrentTerm != 1 {
		t.Fatalf("term changed across crash: %d", snap.CurrentTerm)
	}
	if snap.VotedFor == nil || *snap.VotedFor != n.ID {
		t.Fatal("voted_for was wiped across crash")
	}
}

func TestAdoptTermIfNewerStepsDown(t *testing.T) {
	bus := &fakeBus{}
	peer := uuid.New()
	n := newTestNode(bus, peer)
	n.startElection()
	n.becomeLeader()

	if !n.adoptTermIfNewer(n.currentTerm + 1) {
		t.Fatal("expected higher term to be adopted")
	}
	snap := n.Snapshot()
	if snap.Role != Follower {
		t.Fatalf("role = %v, want Follower after adopting higher term", snap.Role)
	}
	if snap.VotedFor != nil {
		t.Fatal("voted_for must reset when adopting a newer term")
	}
}

func TestSubmitSelfCommitsInSingleNodeCohort(t *testing.T) {
	bus := &fakeBus{}
	n := newTestNode(bus)
	n.role = Leader
	n.currentLeader = &n.ID

	n.Submit(Command{Type: "PUT", Key: "a", Value: []byte("1")})

	if n.Snapshot().CommitLength != 1 {
		t.Fatalf("commit_length = %d, want 1 (single-node quorum is self alone)", n.Snapshot().CommitLength)
	}
	if len(bus.app) != 1 || bus.app[0].Key != "a" {
		t.Fatalf("app sink = %+v", bus.app)
	}
}

func TestTickSingleNodeCohortBecomesLeaderEventually(t *testing.T) {
	bus := &fakeBus{}
	n := newTestNode(bus)
	for i := 0; i < 1000 && n.Snapshot().Role != Leader; i++ {
		n.Tick()
	}
	if n.Snapshot().Role != Leader {
		t.Fatal("single-node cohort never reached Leader")
	}
}
