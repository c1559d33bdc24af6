// raft/persist.go
package raft

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"raftsim/storage"
)

// persistedState is the on-disk shape of the three fields that must
// survive a crash.
type persistedState struct {
	CurrentTerm uint64     `json:"current_term"`
	VotedFor    *uuid.UUID `json:"voted_for,omitempty"`
	Log         []LogEntry `json:"log"`
}

// WALStore implements PersistentStore on top of storage.WAL. Unlike a
// mutation log — which appends one record per change and replays all of
// them to rebuild state — persisted Raft state is wholesale replaced on
// every SaveState call, so WALStore truncates (storage.WAL.Reset) before
// writing the new checkpoint. A correct replica persists these three
// fields before acknowledging any request that depends on them.
type WALStore struct {
	wal *storage.WAL
}

// NewWALStore opens (or creates) a checkpoint file named "raft-state.wal"
// inside dirPath.
func NewWALStore(dirPath string) (*WALStore, error) {
	wal, err := storage.NewWAL(dirPath, "raft-state.wal")
	if err != nil {
		return nil, fmt.Errorf("failed to open raft state WAL: %w", err)
	}
	return &WALStore{wal: wal}, nil
}

// SaveState persists a full checkpoint of the three durable fields.
func (s *WALStore) SaveState(currentTerm uint64, votedFor *uuid.UUID, log []LogEntry) error {
	record, err := json.Marshal(persistedState{
		CurrentTerm: currentTerm,
		VotedFor:    votedFor,
		Log:         log,
	})
	if err != nil {
		return fmt.Errorf("failed to encode raft state: %w", err)
	}
	if err := s.wal.Reset(); err != nil {
		return fmt.Errorf("failed to checkpoint raft state: %w", err)
	}
	return s.wal.Append(record)
}

// LoadState recovers the most recently persisted checkpoint, if any. A
// freshly created store with no prior checkpoint returns the zero state
// (term 0, no vote, empty log) and a nil error.
func (s *WALStore) LoadState() (currentTerm uint64, votedFor *uuid.UUID, log []LogEntry, err error) {
	records, err := s.wal.ReadAll()
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read raft state WAL: %w", err)
	}
	if len(records) == 0 {
		return 0, nil, nil, nil
	}

	var state persistedState
	if err := json.Unmarshal(records[len(records)-1], &state); err != nil {
		return 0, nil, nil, fmt.Errorf("failed to decode raft state: %w", err)
	}
	return state.CurrentTerm, state.VotedFor, state.Log, nil
}

// Close releases the underlying WAL file.
func (s *WALStore) Close() error {
	return s.wal.Close()
}
