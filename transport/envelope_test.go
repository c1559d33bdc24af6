package transport

import (
	"reflect"
	"testing"

	"github.com/google/uuid"

	"raftsim/raft"
)

func TestEncodeDecodeRoundTripAllVariants(t *testing.T) {
	candidate := uuid.New()
	voter := uuid.New()
	leader := uuid.New()
	follower := uuid.New()

	cases := []raft.Message{
		raft.VoteRequest{CandidateID: candidate, Term: 3, LastLogIndex: 2, LastLogTerm: 1},
		raft.VoteResponse{VoterID: voter, CandidateID: candidate, Term: 3, Granted: true},
		raft.LogRequest{
			LeaderID:         leader,
			Term:             4,
			PreviousLogIndex: 1,
			PreviousLogTerm:  3,
			Entries:          []raft.LogEntry{{Term: 4, Command: raft.Command{Type: "PUT", Key: "a", Value: []byte("1")}}},
			CommitLength:     1,
			ToNode:           follower,
		},
		raft.LogResponse{FollowerID: follower, Term: 4, Acknowledged: 2, Success: true},
	}

	for _, original := range cases {
		env, err := EncodeEnvelope(original, uuid.Nil)
		if err != nil {
			t.Fatalf("EncodeEnvelope(%T) error: %v", original, err)
		}
		decoded, err := DecodeEnvelope(env)
		if err != nil {
			t.Fatalf("DecodeEnvelope(%T) error: %v", original, err)
		}
		if !reflect.DeepEqual(decoded, original) {
			t.Fatalf("round trip mismatch for %T: got %+v, want %+v", original, decoded, original)
		}
	}
}

func TestDecodeEnvelopeRejectsUnknownKind(t *testing.T) {
	_, err := DecodeEnvelope(Envelope{Kind: "bogus"})
	if err == nil {
		t.Fatal("expected an error for an unknown envelope kind")
	}
}
