// Package transport is the optional wire adapter: the consensus core has
// no wire format or CLI of its own, so a production deployment needs
// something that serialises the four message variants with their exact
// fields. Nothing in raft or cohort imports this package — it supplies
// the wire envelope and the google.golang.org/grpc Server/Client that
// cmd/server's raft.Bus implementation sends through, so a deployment can
// swap the in-memory harness bus for a real one without touching the
// protocol core.
package transport

import (
	"fmt"

	"github.com/google/uuid"

	"raftsim/raft"
)

// kind tags which of the four message variants an Envelope carries.
type kind string

const (
	kindVoteRequest  kind = "vote_request"
	kindVoteResponse kind = "vote_response"
	kindLogRequest   kind = "log_request"
	kindLogResponse  kind = "log_response"
)

// Envelope is the wire shape of a raft.Message: a tag plus exactly one
// populated payload, and a destination. A zero ToNode means broadcast:
// VoteRequest is logically a broadcast, a LogRequest always carries its
// follower's ID as ToNode, and VoteResponse and LogResponse are
// point-to-point but travel the same envelope shape for a uniform codec.
type Envelope struct {
	Kind        kind             `json:"kind"`
	ToNode      uuid.UUID        `json:"to_node,omitempty"`
	VoteRequest *VoteRequestDTO  `json:"vote_request,omitempty"`
	VoteResp    *VoteResponseDTO `json:"vote_response,omitempty"`
	LogRequest  *LogRequestDTO   `json:"log_request,omitempty"`
	LogResp     *LogResponseDTO  `json:"log_response,omitempty"`
}

// VoteRequestDTO mirrors raft.VoteRequest field for field.
type VoteRequestDTO struct {
	CandidateID  uuid.UUID `json:"candidate_id"`
	Term         uint64    `json:"term"`
	LastLogIndex uint64    `json:"last_log_index"`
	LastLogTerm  uint64    `json:"last_log_term"`
}

// VoteResponseDTO mirrors raft.VoteResponse field for field.
type VoteResponseDTO struct {
	VoterID     uuid.UUID `json:"voter_id"`
	CandidateID uuid.UUID `json:"candidate_id"`
	Term        uint64    `json:"term"`
	Granted     bool      `json:"granted"`
}

// LogEntryDTO mirrors raft.LogEntry field for field.
type LogEntryDTO struct {
	Term    uint64      `json:"term"`
	Command raft.Command `json:"command"`
}

// LogRequestDTO mirrors raft.LogRequest field for field.
type LogRequestDTO struct {
	LeaderID         uuid.UUID     `json:"leader_id"`
	Term             uint64        `json:"term"`
	PreviousLogIndex uint64        `json:"previous_log_index"`
	PreviousLogTerm  uint64        `json:"previous_log_term"`
	Entries          []LogEntryDTO `json:"entries,omitempty"`
	CommitLength     uint64        `json:"commit_length"`
	ToNode           uuid.UUID     `json:"to_node"`
}

// LogResponseDTO mirrors raft.LogResponse field for field.
type LogResponseDTO struct {
	FollowerID   uuid.UUID `json:"follower_id"`
	Term         uint64    `json:"term"`
	Acknowledged uint64    `json:"acknowledged"`
	Success      bool      `json:"success"`
}

// EncodeEnvelope converts a raft.Message into its wire Envelope. toNode is
// the zero UUID for messages that are logically broadcasts.
func EncodeEnvelope(msg raft.Message, toNode uuid.UUID) (Envelope, error) {
	switch m := msg.(type) {
	case raft.VoteRequest:
		return Envelope{
			Kind:   kindVoteRequest,
			ToNode: toNode,
			VoteRequest: &VoteRequestDTO{
				CandidateID:  m.CandidateID,
				Term:         m.Term,
				LastLogIndex: m.LastLogIndex,
				LastLogTerm:  m.LastLogTerm,
			},
		}, nil
	case raft.VoteResponse:
		return Envelope{
			Kind:   kindVoteResponse,
			ToNode: toNode,
			VoteResp: &VoteResponseDTO{
				VoterID:     m.VoterID,
				CandidateID: m.CandidateID,
				Term:        m.Term,
				Granted:     m.Granted,
			},
		}, nil
	case raft.LogRequest:
		entries := make([]LogEntryDTO, len(m.Entries))
		for i, e := range m.Entries {
			entries[i] = LogEntryDTO{Term: e.Term, Command: e.Command}
		}
		return Envelope{
			Kind:   kindLogRequest,
			ToNode: m.ToNode,
			LogRequest: &LogRequestDTO{
				LeaderID:         m.LeaderID,
				Term:             m.Term,
				PreviousLogIndex: m.PreviousLogIndex,
				PreviousLogTerm:  m.PreviousLogTerm,
				Entries:          entries,
				CommitLength:     m.CommitLength,
				ToNode:           m.ToNode,
			},
		}, nil
	case raft.LogResponse:
		return Envelope{
			Kind:   kindLogResponse,
			ToNode: toNode,
			LogResp: &LogResponseDTO{
				FollowerID:   m.FollowerID,
				Term:         m.Term,
				Acknowledged: m.Acknowledged,
				Success:      m.Success,
			},
		}, nil
	default:
		return Envelope{}, fmt.Errorf("transport: unsupported message type %T", msg)
	}
}

// DecodeEnvelope converts a wire Envelope back into a raft.Message.
func DecodeEnvelope(env Envelope) (raft.Message, error) {
	switch env.Kind {
	case kindVoteRequest:
		if env.VoteRequest == nil {
			return nil, fmt.Errorf("transport: envelope tagged %s missing payload", env.Kind)
		}
		d := env.VoteRequest
		return raft.VoteRequest{
			CandidateID:  d.CandidateID,
			Term:         d.Term,
			LastLogIndex: d.LastLogIndex,
			LastLogTerm:  d.LastLogTerm,
		}, nil
	case kindVoteResponse:
		if env.VoteResp == nil {
			return nil, fmt.Errorf("transport: envelope tagged %s missing payload", env.Kind)
		}
		d := env.VoteResp
		return raft.VoteResponse{
			VoterID:     d.VoterID,
			CandidateID: d.CandidateID,
			Term:        d.Term,
			Granted:     d.Granted,
		}, nil
	case kindLogRequest:
		if env.LogRequest == nil {
			return nil, fmt.Errorf("transport: envelope tagged %s missing payload", env.Kind)
		}
		d := env.LogRequest
		entries := make([]raft.LogEntry, len(d.Entries))
		for i, e := range d.Entries {
			entries[i] = raft.LogEntry{Term: e.Term, Command: e.Command}
		}
		return raft.LogRequest{
			LeaderID:         d.LeaderID,
			Term:             d.Term,
			PreviousLogIndex: d.PreviousLogIndex,
			PreviousLogTerm:  d.PreviousLogTerm,
			Entries:          entries,
			CommitLength:     d.CommitLength,
			ToNode:           d.ToNode,
		}, nil
	case kindLogResponse:
		if env.LogResp == nil {
			return nil, fmt.Errorf("transport: envelope tagged %s missing payload", env.Kind)
		}
		d := env.LogResp
		return raft.LogResponse{
			FollowerID:   d.FollowerID,
			Term:         d.Term,
			Acknowledged: d.Acknowledged,
			Success:      d.Success,
		}, nil
	default:
		return nil, fmt.Errorf("transport: unknown envelope kind %q", env.Kind)
	}
}
