// raft/message.go
package raft

import "github.com/google/uuid"

// Message is the tagged sum of the four protocol datagrams a replica can
// send or receive. Every variant carries the sender's view of its term so
// a recipient can decide, before doing anything else, whether it needs to
// adopt a newer term.
type Message interface {
	message()
}

// VoteRequest is broadcast by a candidate starting an election. It is
// unicast in spirit but placed on the shared bus like everything else;
// the candidate itself simply ignores its own request when it echoes
// back (see HandleMessage).
type VoteRequest struct {
	CandidateID  uuid.UUID
	Term         uint64
	LastLogIndex uint64
	LastLogTerm  uint64
}

// VoteResponse targets CandidateID; every other replica drops it.
type VoteResponse struct {
	VoterID     uuid.UUID
	CandidateID uuid.UUID
	Term        uint64
	Granted     bool
}

// LogRequest is scoped to a single follower via ToNode. An empty Entries
// slice is a heartbeat.
type LogRequest struct {
	LeaderID         uuid.UUID
	Term             uint64
	PreviousLogIndex uint64
	PreviousLogTerm  uint64
	Entries          []LogEntry
	CommitLength     uint64
	ToNode           uuid.UUID
}

// LogResponse is the follower's reply to a LogRequest.
type LogResponse struct {
	FollowerID   uuid.UUID
	Term         uint64
	Acknowledged uint64
	Success      bool
}

func (VoteRequest) message()  {}
func (VoteResponse) message() {}
func (LogRequest) message()   {}
func (LogResponse) message()  {}

// LogEntry is a single (term, command) pair. Terms never decrease along a
// log; commands are opaque to the protocol.
type LogEntry struct {
	Term    uint64
	Command Command
}

// Command is the opaque application payload carried by a log entry. The
// protocol never inspects it; demoapp and cmd/simulate give it shape.
type Command struct {
	Type  string `json:"type"` // e.g. "PUT" or "DELETE"
	Key   string `json:"key,omitempty"`
	Value []byte `json:"value,omitempty"`
}
