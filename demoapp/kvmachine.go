// Package demoapp is a minimal worked example of an application state
// machine: a downstream collaborator that consumes the committed command
// stream in order and executes each command exactly once. It is not part
// of the consensus core — cohort.Cohort never imports it — and it is
// deliberately much simpler than a real LSM storage engine (see
// DESIGN.md for why sstable/memtable/compaction/bloom_filter are dropped
// rather than adapted here). Backed by an in-memory map with WAL-backed
// durability and no compaction, paired with the generalized
// storage/wal.go.
package demoapp

import (
	"encoding/json"
	"fmt"
	"sync"

	"raftsim/raft"
	"raftsim/storage"
)

// opRecord is what KVMachine appends to its WAL for every applied
// command, tagged with the committed index it corresponds to so recovery
// can pick up exactly where it left off.
type opRecord struct {
	Index   uint64      `json:"index"`
	Command raft.Command `json:"command"`
}

// KVMachine applies a committed stream of PUT/DELETE commands to an
// in-memory map, exactly once each, in order.
type KVMachine struct {
	mu      sync.RWMutex
	data    map[string][]byte
	wal     *storage.WAL
	applied uint64 // count of commands applied so far; the dedupe watermark
}

// NewKVMachine opens (or recovers) a KVMachine backed by a WAL file named
// "kv-ops.wal" inside dirPath. A nil wal (dirPath == "") keeps everything
// in memory only, for tests that don't need durability.
func NewKVMachine(dirPath string) (*KVMachine, error) {
	m := &KVMachine{data: make(map[string][]byte)}

	if dirPath == "" {
		return m, nil
	}

	wal, err := storage.NewWAL(dirPath, "kv-ops.wal")
	if err != nil {
		return nil, fmt.Errorf("demoapp: failed to open kv op log: %w", err)
	}
	m.wal = wal

	if err := m.recover(); err != nil {
		return nil, fmt.Errorf("demoapp: failed to recover from kv op log: %w", err)
	}
	return m, nil
}

func (m *KVMachine) recover() error {
	records, err := m.wal.ReadAll()
	if err != nil {
		return err
	}
	for _, raw := range records {
		var rec opRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("failed to decode op record: %w", err)
		}
		m.applyLocked(rec.Command)
		if rec.Index+1 > m.applied {
			m.applied = rec.Index + 1
		}
	}
	return nil
}

// Apply executes command if it has not already been applied at index
// (the committed index from the raft log). Indices are expected to
// arrive in order, one higher than the last. An index that was already
// applied is skipped and Apply returns nil; an index past the next
// expected one is a caller bug and Apply returns an error rather than
// silently corrupting the watermark.
func (m *KVMachine) Apply(index uint64, command raft.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < m.applied {
		return nil // already applied; enforces exactly-once application
	}
	if index > m.applied {
		return fmt.Errorf("demoapp: out-of-order apply: got index %d, expected %d", index, m.applied)
	}

	if m.wal != nil {
		raw, err := json.Marshal(opRecord{Index: index, Command: command})
		if err != nil {
			return fmt.Errorf("failed to encode op record: %w", err)
		}
		if err := m.wal.Append(raw); err != nil {
			return fmt.Errorf("failed to append op record: %w", err)
		}
	}

	m.applyLocked(command)
	m.applied = index + 1
	return nil
}

// ApplyCommitted is a convenience for consuming a cohort's committed
// stream directly: it applies commands[0..] at consecutive indices
// starting from startIndex, stopping at the first error.
func (m *KVMachine) ApplyCommitted(startIndex uint64, commands []raft.Command) error {
	for i, cmd := range commands {
		if err := m.Apply(startIndex+uint64(i), cmd); err != nil {
			return err
		}
	}
	return nil
}

func (m *KVMachine) applyLocked(command raft.Command) {
	switch command.Type {
	case "PUT":
		m.data[command.Key] = command.Value
	case "DELETE":
		delete(m.data, command.Key)
	}
}

// Get returns the current value for key and whether it is present.
func (m *KVMachine) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

// Len reports how many keys are currently stored.
func (m *KVMachine) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Applied reports how many committed commands have been applied so far.
func (m *KVMachine) Applied() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.applied
}

// Close releases the underlying WAL, if any.
func (m *KVMachine) Close() error {
	if m.wal == nil {
		return nil
	}
	return m.wal.Close()
}
