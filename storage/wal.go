// Package storage provides a small framed, append-only write-ahead log.
// The WAL itself
// knows nothing about what it's logging — callers hand it opaque,
// already-encoded records — so the same type backs both raft's
// PersistentStore checkpoints (raft/persist.go) and demoapp's KV op log
// (demoapp/kvmachine.go).
package storage

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// WAL is a length-prefixed append-only record log.
type WAL struct {
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
	path   string
}

// NewWAL opens (creating if necessary) the WAL file named fileName inside
// dirPath.
func NewWAL(dirPath, fileName string) (*WAL, error) {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	walPath := filepath.Join(dirPath, fileName)

	file, err := os.OpenFile(walPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAL file: %w", err)
	}

	return &WAL{
		file:   file,
		writer: bufio.NewWriter(file),
		path:   walPath,
	}, nil
}

// Append writes one opaque, length-prefixed record.
func (w *WAL) Append(record []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	recLen := uint32(len(record))
	if err := binary.Write(w.writer, binary.LittleEndian, recLen); err != nil {
		return fmt.Errorf("failed to write record length: %w", err)
	}
	if _, err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	// NOTE: we avoid calling file.Sync() on every append because an
	// fsync per-record is extremely expensive (especially on Windows).
	// Flushing the buffered writer is sufficient for tests and typical
	// throughput; we keep Sync on Reset/Close to ensure data is
	// persisted when rotating or closing the WAL.

	return nil
}

// ReadAll replays every record written so far, in order.
func (w *WAL) ReadAll() ([][]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("failed to seek to beginning: %w", err)
	}

	reader := bufio.NewReader(w.file)
	var records [][]byte

	for {
		record, err := w.readRecord(reader)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		records = append(records, record)
	}

	return records, nil
}

func (w *WAL) readRecord(reader *bufio.Reader) ([]byte, error) {
	var recLen uint32
	if err := binary.Read(reader, binary.LittleEndian, &recLen); err != nil {
		return nil, err
	}

	record := make([]byte, recLen)
	if _, err := io.ReadFull(reader, record); err != nil {
		return nil, err
	}

	return record, nil
}

// Close flushes, syncs and closes the underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync WAL on close: %w", err)
	}
	return w.file.Close()
}

// Reset truncates the WAL, discarding every record written so far. Used
// by checkpointed consumers (raft.WALStore) that log whole-state
// snapshots rather than an ever-growing op log.
func (w *WAL) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to truncate WAL: %w", err)
	}

	w.file = file
	w.writer = bufio.NewWriter(file)
	// Ensure new WAL file is synced to disk metadata-wise. Caller may
	// rely on Reset() to make new file durable.
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync WAL after reset: %w", err)
	}
	return nil
}
