// raft/node.go
package raft

import (
	"github.com/google/uuid"
)

// Role mirrors the three states a replica can be in.
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "Follower"
	case Candidate:
		return "Candidate"
	case Leader:
		return "Leader"
	default:
		return "Unknown"
	}
}

// Timer base units. The heartbeat base is larger than the election base,
// and a leader samples its heartbeat timer from half the base. A
// LogRequest resets a follower's election timer, not its heartbeat timer,
// so a follower still starts an election whenever its own heartbeat timer
// lapses.
const (
	heartbeatBase = 8
	electionBase  = 3
	// jitterK bounds how wide the random multiple of a timer base can
	// range, scaled by cohort size so a larger cohort spreads election
	// attempts out proportionally wider.
	jitterK = 10
)

// Bus is the non-owning handle a Node uses to reach the outside world: it
// can enqueue outbound messages and publish newly committed commands. The
// harness implements it; the Node never owns or outlives it.
type Bus interface {
	Broadcast(msg Message)
	AddAppMessages(commands []Command)
}

// PersistentStore lets a Node survive a process restart: CurrentTerm,
// VotedFor and Log must be durable before any outbound message depending
// on them is sent, or a replica could vote twice or replay a committed
// entry after a crash. A nil store means "keep everything in memory
// only," which is fine for a short-lived simulation but not a real
// deployment.
type PersistentStore interface {
	SaveState(currentTerm uint64, votedFor *uuid.UUID, log []LogEntry) error
}

// Node is a single replica's volatile consensus state.
type Node struct {
	ID uuid.UUID

	// Persistent state: must survive a crash and restart.
	currentTerm uint64
	votedFor    *uuid.UUID
	log         []LogEntry

	// Volatile state.
	commitLength  uint64
	role          Role
	currentLeader *uuid.UUID

	// Candidate-only.
	votesReceived map[uuid.UUID]bool

	// Leader-only, reinitialised on election.
	sentLength map[uuid.UUID]uint64
	ackedLength map[uuid.UUID]uint64

	// Timers: integer countdowns decremented by Tick.
	clock            uint64
	heartbeatTimeout int
	electionTimeout  int

	peers      []uuid.UUID
	bus        Bus
	store      PersistentStore
	logger     *Logger
	cohortSize int
}

// Config bundles what a Node needs at construction time beyond its
// identity: the bus to talk to, an optional persistence hook, an optional
// logger, and the size of the cohort it participates in (used for the
// quorum size and timer jitter scaling; membership itself lives in the
// harness).
type Config struct {
	Bus    Bus
	Store  PersistentStore
	Logger *Logger
	// ID pins the replica's identity instead of generating a random one.
	// A harness assembling an in-memory cohort never needs this (each
	// process lives exactly once), but a long-running deployment that
	// restarts a replica and recovers its persisted state from disk
	// needs the same ID across restarts, since persisted votes and log
	// entries are meaningless under a freshly rolled identity.
	ID         *uuid.UUID
	CohortSize int
}

// NewNode constructs a replica in its initial state: follower, term 0,
// empty log, no vote, no leader. If cfg.ID is nil, a fresh random
// identifier is generated.
func NewNode(cfg Config) *Node {
	id := uuid.New()
	if cfg.ID != nil {
		id = *cfg.ID
	}
	n := &Node{
		ID:            id,
		currentTerm:   0,
		votedFor:      nil,
		log:           nil,
		commitLength:  0,
		role:          Follower,
		currentLeader: nil,
		votesReceived: make(map[uuid.UUID]bool),
		sentLength:    make(map[uuid.UUID]uint64),
		ackedLength:   make(map[uuid.UUID]uint64),
		bus:           cfg.Bus,
		store:         cfg.Store,
		logger:        cfg.Logger,
		cohortSize:    cfg.CohortSize,
	}
	if n.cohortSize < 1 {
		n.cohortSize = 1
	}
	n.resetElectionTimeout()
	n.resetHeartbeatTimeout()
	return n
}

// SetPeers records the identifiers of every other replica in the cohort.
// Membership is static (dynamic reconfiguration is out of scope): the
// harness calls this each time it adds a node while assembling the
// cohort, before the cohort starts ticking.
func (n *Node) SetPeers(peers []uuid.UUID) {
	n.peers = nil
	for _, p := range peers {
		if p == n.ID {
			continue
		}
		n.peers = append(n.peers, p)
		if _, ok := n.sentLength[p]; !ok {
			n.sentLength[p] = 0
		}
		if _, ok := n.ackedLength[p]; !ok {
			n.ackedLength[p] = 0
		}
	}
}

// SetCohortSize updates the denominator used for quorum and timer
// jitter. The harness calls this whenever cohort membership changes
// while assembling a Cohort, before Iterate is ever called.
func (n *Node) SetCohortSize(size int) {
	if size < 1 {
		size = 1
	}
	n.cohortSize = size
}



// State is a read-only snapshot of a Node, useful for tests and tracing
// without reaching into unexported fields from another package.
type State struct {
	ID            uuid.UUID
	CurrentTerm   uint64
	VotedFor      *uuid.UUID
	Log           []LogEntry
	CommitLength  uint64
	Role          Role
	CurrentLeader *uuid.UUID
	VotesReceived map[uuid.UUID]bool
	SentLength    map[uuid.UUID]uint64
	AckedLength   map[uuid.UUID]uint64
}

// Snapshot returns a copy of the node's current state.
func (n *Node) Snapshot() State {
	logCopy := make([]LogEntry, len(n.log))
	copy(logCopy, n.log)
	votes := make(map[uuid.UUID]bool, len(n.votesReceived))
	for k, v := range n.votesReceived {
		votes[k] = v
	}
	sent := make(map[uuid.UUID]uint64, len(n.sentLength))
	for k, v := range n.sentLength {
		sent[k] = v
	}
	acked := make(map[uuid.UUID]uint64, len(n.ackedLength))
	for k, v := range n.ackedLength {
		acked[k] = v
	}
	return State{
		ID:            n.ID,
		CurrentTerm:   n.currentTerm,
		VotedFor:      n.votedFor,
		Log:           logCopy,
		CommitLength:  n.commitLength,
		Role:          n.role,
		CurrentLeader: n.currentLeader,
		VotesReceived: votes,
		SentLength:    sent,
		AckedLength:   acked,
	}
}

func (n *Node) lastLogTerm() uint64 {
	if len(n.log) == 0 {
		return 0
	}
	return n.log[len(n.log)-1].Term
}

// persist saves CurrentTerm, VotedFor and Log if a store is configured.
// Every call site that is about to send an outbound message depending on
// those fields calls this first, so a crash right after sending never
// leaves the durable state behind what a peer has already been told.
func (n *Node) persist() {
	if n.store == nil {
		return
	}
	logCopy := make([]LogEntry, len(n.log))
	copy(logCopy, n.log)
	if err := n.store.SaveState(n.currentTerm, n.votedFor, logCopy); err != nil {
		n.logger.Error("failed to persist state: %v", err)
	}
}

// resetElectionTimeout resamples the election timer to a uniform range of
// [1, jitterK*cohortSize] times the election base.
func (n *Node) resetElectionTimeout() {
	n.electionTimeout = electionBase * randomInt(1, jitterK*n.cohortSize+1)
}

// resetHeartbeatTimeout resamples the heartbeat timer. A leader's base is
// halved so its cadence dominates followers' election cadence.
func (n *Node) resetHeartbeatTimeout() {
	base := heartbeatBase
	if n.role == Leader {
		base = heartbeatBase / 2
		if base < 1 {
			base = 1
		}
	}
	n.heartbeatTimeout = base * randomInt(1, jitterK*n.cohortSize+1)
}

// Tick advances the replica's logical clock by one unit. It is the only
// place timers are checked: a leader whose heartbeat timer lapses sends
// another round of heartbeats, a follower whose heartbeat timer lapses
// starts an election, and a candidate whose heartbeat or election timer
// lapses starts a new one. The election timer only counts down while the
// replica is a candidate.
func (n *Node) Tick() {
	n.clock++
	n.heartbeatTimeout--
	if n.role == Candidate {
		n.electionTimeout--
	}

	switch {
	case n.role == Leader && n.heartbeatTimeout <= 0:
		n.broadcastHeartbeat()
	case n.heartbeatTimeout <= 0, n.role == Candidate && n.electionTimeout <= 0:
		n.startElection()
	}
}

// HandleMessage dispatches an inbound message to the right handler,
// exhaustively matching the tagged union of wire messages. A replica
// first adopts any higher term it observes, then handles the message in
// its now-current role.
func (n *Node) HandleMessage(msg Message) {
	switch m := msg.(type) {
	case VoteRequest:
		if m.CandidateID == n.ID {
			return
		}
		n.handleVoteRequest(m)
	case VoteResponse:
		if m.CandidateID != n.ID {
			return
		}
		n.handleVoteResponse(m)
	case LogRequest:
		if m.ToNode != n.ID {
			return
		}
		n.handleLogRequest(m)
	case LogResponse:
		if m.FollowerID == n.ID {
			return
		}
		n.handleLogResponse(m)
	}
}

// Submit accepts a client command on the leader (broadcast_log_message in
// the reference). Non-leaders silently ignore it — a production wrapper
// is responsible for redirecting clients to the current leader.
func (n *Node) Submit(command Command) {
	if n.role != Leader {
		return
	}
	entry := LogEntry{Term: n.currentTerm, Command: command}
	n.log = append(n.log, entry)
	n.ackedLength[n.ID] = uint64(len(n.log))
	n.persist()
	// A single-node cohort (or one where every peer has already acked
	// up to here) can commit on the leader's own ack alone; don't wait
	// for a LogResponse that will never arrive.
	n.commitLogEntries()
	for _, peer := range n.peers {
		n.replicateTo(peer)
	}
}

// HandleCrash drops volatile leadership state and rejoins as a follower.
// CurrentTerm, VotedFor and Log are untouched — wiping them would let the
// replica vote or replicate inconsistently with promises it already made
// before the crash.
func (n *Node) HandleCrash() {
	n.role = Follower
	n.currentLeader = nil
	n.votesReceived = make(map[uuid.UUID]bool)
	n.sentLength = make(map[uuid.UUID]uint64)
	n.ackedLength = make(map[uuid.UUID]uint64)
}

func (n *Node) adoptTermIfNewer(term uint64) bool {
	if term <= n.currentTerm {
		return false
	}
	n.currentTerm = term
	n.votedFor = nil
	n.role = Follower
	n.currentLeader = nil
	n.persist()
	return true
}
