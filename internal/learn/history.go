// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package learn persists compilation history as append-only JSONL and
// folds it into per-strategy performance aggregates that feed strategy
// selection. A corrupt history never blocks compilation: unreadable
// lines are skipped and an unreadable file starts an empty history.
package learn

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/meshintel/latexforge/pkg/types"
)

// HistoryStore is the append-only JSONL record log.
type HistoryStore struct {
	path string
	log  *zap.Logger

	mu      sync.Mutex
	records []types.CompilationRecord
}

// OpenHistory loads the history at path, creating parent directories as
// needed. Lines that fail to parse are skipped with a warning.
func OpenHistory(path string, log *zap.Logger) (*HistoryStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	s := &HistoryStore{path: path, log: log}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		log.Warn("history unreadable, starting empty", zap.Error(err))
		return s, nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec types.CompilationRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			log.Warn("skipping corrupt history line",
				zap.Int("line", line), zap.Error(err))
			continue
		}
		s.records = append(s.records, rec)
	}
	if err := scanner.Err(); err != nil {
		log.Warn("history truncated while reading", zap.Error(err))
	}
	return s, nil
}

// Append durably adds one record: the line is written and synced before
// Append returns, so a crash never loses acknowledged records.
func (s *HistoryStore) Append(rec types.CompilationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding history record: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending history record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing history: %w", err)
	}

	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of the loaded records in append order.
func (s *HistoryStore) Records() []types.CompilationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.CompilationRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Compact rewrites the history keeping only the newest keep records.
// The rewrite goes through a temporary file so a crash mid-compaction
// leaves the original intact.
func (s *HistoryStore) Compact(keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep <= 0 || len(s.records) <= keep {
		return nil
	}
	kept := s.records[len(s.records)-keep:]

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".history-*")
	if err != nil {
		return fmt.Errorf("creating compaction temp file: %w", err)
	}
	tmpName := tmp.Name()
	w := bufio.NewWriter(tmp)
	for _, rec := range kept {
		data, err := json.Marshal(rec)
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("encoding history record: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing compacted history: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing compacted history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing compacted history: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("installing compacted history: %w", err)
	}

	s.records = append([]types.CompilationRecord(nil), kept...)
	return nil
}
