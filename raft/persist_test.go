package raft

import (
	"testing"

	"github.com/google/uuid"
)

func TestWALStoreSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := NewWALStore(dir)
	if err != nil {
		t.Fatalf("NewWALStore: %v", err)
	}
	defer store.Close()

	voter := uuid.New()
	log := []LogEntry{
		{Term: 1, Command: Command{Type: "PUT", Key: "a", Value: []byte("1")}},
		{Term: 2, Command: Command{Type: "DELETE", Key: "a"}},
	}

	if err := store.SaveState(2, &voter, log); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	term, votedFor, loaded, err := store.LoadState()
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if term != 2 {
		t.Fatalf("term = %d, want 2", term)
	}
	if votedFor == nil || *votedFor != voter {
		t.Fatalf("votedFor = %v, want %v", votedFor, voter)
	}
	if len(loaded) != 2 || loaded[1].Command.Key != "a" {
		t.Fatalf("loaded log = %+v", loaded)
	}
}

func TestWALStoreLoadStateOnFreshStoreIsZero(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewWALStore: %v", err)
	}
	defer store.Close()

	term, votedFor, log, err := store.LoadState()
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if term != 0 || votedFor != nil || len(log) != 0 {
		t.Fatalf("expected zero state, got term=%d votedFor=%v log=%v", term, votedFor, log)
	}
}

func TestWALStoreCheckpointsReplaceRatherThanAppend(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewWALStore: %v", err)
	}
	defer store.Close()

	if err := store.SaveState(1, nil, nil); err != nil {
		t.Fatalf("first SaveState: %v", err)
	}
	if err := store.SaveState(2, nil, nil); err != nil {
		t.Fatalf("second SaveState: %v", err)
	}

	term, _, _, err := store.LoadState()
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if term != 2 {
		t.Fatalf("term = %d, want 2 (checkpoint should replace, not append)", term)
	}
}

func TestNodePersistsThroughConfiguredStore(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewWALStore: %v", err)
	}
	defer store.Close()

	bus := &fakeBus{}
	peer := uuid.New()
	n := NewNode(Config{Bus: bus, Store: store, CohortSize: 2})
	n.SetPeers([]uuid.UUID{peer})

	n.startElection()

	term, votedFor, _, err := store.LoadState()
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if term != n.currentTerm {
		t.Fatalf("persisted term = %d, want %d", term, n.currentTerm)
	}
	if votedFor == nil || *votedFor != n.ID {
		t.Fatalf("persisted votedFor = %v, want %v", votedFor, n.ID)
	}
}
