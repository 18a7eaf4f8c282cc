// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/meshintel/latexforge/internal/telemetry"
)

const (
	objectsDir = "objects"
	dbFile     = "index.db"
)

// Store is the on-disk stage cache. The SQLite index tracks key, size,
// and last access; object payloads live as individual files under
// objects/ named by key.
type Store struct {
	db       *sql.DB
	dir      string
	maxBytes int64
	log      *zap.Logger

	mu    sync.Mutex // guards the per-key lock table
	locks map[string]*sync.Mutex
}

// NewStore opens or creates the cache at dir. maxBytes bounds the total
// payload size; zero disables eviction.
func NewStore(dir string, maxBytes int64, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Join(dir, objectsDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening cache index: %w", err)
	}

	s := &Store{
		db:       db,
		dir:      dir,
		maxBytes: maxBytes,
		log:      log,
		locks:    map[string]*sync.Mutex{},
	}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return s, nil
}

// Close releases the index database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			key TEXT PRIMARY KEY,
			stage TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			size INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			last_access TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_last_access ON entries(last_access)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (s *Store) objectPath(key string) string {
	return filepath.Join(s.dir, objectsDir, key)
}

// keyLock returns the mutex serializing writes for one key.
func (s *Store) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Get returns the cached payload for key, or ok=false on a miss. A
// missing object file or a payload whose hash no longer matches the
// index is treated as a miss and the entry is dropped; corruption
// never propagates to the pipeline.
func (s *Store) Get(ctx context.Context, key string) (payload []byte, ok bool) {
	ctx, span := telemetry.StartSpan(ctx, "cache.get")
	defer span.End()

	var contentHash string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash FROM entries WHERE key = ?`, key,
	).Scan(&contentHash)
	if err == sql.ErrNoRows {
		telemetry.Count(ctx, "cache.misses", 1)
		return nil, false
	}
	if err != nil {
		s.log.Warn("cache index read failed", zap.Error(err))
		return nil, false
	}

	data, err := os.ReadFile(s.objectPath(key))
	if err != nil || ContentHash(data) != contentHash {
		s.log.Warn("cache entry corrupted, dropping", zap.String("key", key))
		_ = s.Invalidate(ctx, key)
		telemetry.Count(ctx, "cache.corrupt", 1)
		return nil, false
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx,
		`UPDATE entries SET last_access = ? WHERE key = ?`, now, key,
	); err != nil {
		s.log.Warn("cache access-time update failed", zap.Error(err))
	}

	telemetry.Count(ctx, "cache.hits", 1)
	return data, true
}

// Put stores payload under key. The object is written to a temporary
// file and renamed into place so readers never observe partial writes.
// Concurrent puts for the same key are serialized; the last writer wins.
func (s *Store) Put(ctx context.Context, key, stage string, payload []byte) error {
	ctx, span := telemetry.StartSpan(ctx, "cache.put")
	defer span.End()

	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	dst := s.objectPath(key)
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".put-*")
	if err != nil {
		return fmt.Errorf("creating cache temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing cache object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing cache object: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("installing cache object: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entries (key, stage, content_hash, size, created_at, last_access)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			content_hash=excluded.content_hash, size=excluded.size,
			last_access=excluded.last_access`,
		key, stage, ContentHash(payload), len(payload), now, now,
	)
	if err != nil {
		return fmt.Errorf("updating cache index: %w", err)
	}

	return s.evict(ctx)
}

// evict removes least-recently-accessed entries until the payload total
// fits the byte budget.
func (s *Store) evict(ctx context.Context) error {
	if s.maxBytes <= 0 {
		return nil
	}
	for {
		var total sql.NullInt64
		if err := s.db.QueryRowContext(ctx,
			`SELECT SUM(size) FROM entries`,
		).Scan(&total); err != nil {
			return fmt.Errorf("sizing cache: %w", err)
		}
		if !total.Valid || total.Int64 <= s.maxBytes {
			return nil
		}

		var victim string
		err := s.db.QueryRowContext(ctx,
			`SELECT key FROM entries ORDER BY last_access ASC LIMIT 1`,
		).Scan(&victim)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("selecting eviction victim: %w", err)
		}

		s.log.Debug("evicting cache entry", zap.String("key", victim))
		if err := s.Invalidate(ctx, victim); err != nil {
			return err
		}
		telemetry.Count(ctx, "cache.evictions", 1)
	}
}

// Invalidate removes one entry and its object file. Missing entries are
// not an error.
func (s *Store) Invalidate(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("removing cache entry: %w", err)
	}
	if err := os.Remove(s.objectPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing cache object: %w", err)
	}
	return nil
}

// InvalidateStage removes every entry recorded for one stage. Used when
// a source-modifying fix forces earlier stages to rerun.
func (s *Store) InvalidateStage(ctx context.Context, stage string) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM entries WHERE stage = ?`, stage)
	if err != nil {
		return fmt.Errorf("listing stage entries: %w", err)
	}
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			rows.Close()
			return fmt.Errorf("scanning stage entry: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("listing stage entries: %w", err)
	}
	rows.Close()

	for _, k := range keys {
		if err := s.Invalidate(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes every cache entry and object.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("clearing cache index: %w", err)
	}
	dir := filepath.Join(s.dir, objectsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading objects directory: %w", err)
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("removing cache object: %w", err)
		}
	}
	return nil
}

// Stats summarizes cache occupancy for the CLI.
type Stats struct {
	Entries    int
	TotalBytes int64
	ByStage    map[string]int
}

// Stat reports entry count and payload size, broken down by stage.
func (s *Store) Stat(ctx context.Context) (Stats, error) {
	st := Stats{ByStage: map[string]int{}}
	rows, err := s.db.QueryContext(ctx, `SELECT stage, size FROM entries`)
	if err != nil {
		return st, fmt.Errorf("reading cache index: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var stage string
		var size int64
		if err := rows.Scan(&stage, &size); err != nil {
			return st, fmt.Errorf("scanning cache entry: %w", err)
		}
		st.Entries++
		st.TotalBytes += size
		st.ByStage[stage]++
	}
	return st, rows.Err()
}
