// Package cache persists the per-file graph state in SQLite so a restart can
// skip the initial parse. The cache is an optimization only: any mismatch
// with the files on disk discards it wholesale.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/skelly-dev/codegraph/internal/state"
)

var (
	// ErrEmpty is returned by Load when nothing has been saved.
	ErrEmpty = errors.New("cache is empty")

	// ErrStale is returned by Load when the saved data was written for a
	// different root or by an incompatible version.
	ErrStale = errors.New("cache is stale")
)

// Store is a SQLite-backed cache of mapper state.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens or creates the cache database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}

	return &Store{db: db, path: path, logger: logger}, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Save replaces the cached state with st.
func (s *Store) Save(ctx context.Context, st *state.State) error {
	started := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM files"); err != nil {
		return fmt.Errorf("clear cached files: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM metadata"); err != nil {
		return fmt.Errorf("clear cache metadata: %w", err)
	}

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO files (path, hash, language, mod_time, size, record)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	for path, fs := range st.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := json.Marshal(fs)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		if _, err := insert.ExecContext(ctx, path, fs.Hash, fs.Language, fs.ModTime.UnixNano(), fs.Size, record); err != nil {
			return fmt.Errorf("insert %s: %w", path, err)
		}
	}

	metadata := map[string]string{
		"schema_version": SchemaVersion,
		"state_version":  st.Version,
		"parser_version": st.ParserVersion,
		"root":           st.Root,
		"updated_at":     st.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	for key, value := range metadata {
		if _, err := tx.ExecContext(ctx, "INSERT INTO metadata (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("write metadata %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache: %w", err)
	}
	s.logger.Debug("cache saved", "path", s.path, "files", len(st.Files), "duration", time.Since(started))
	return nil
}

// Load returns the state saved for root. Digests are not checked here; the
// caller validates them against the files on disk.
func (s *Store) Load(ctx context.Context, root string) (*state.State, error) {
	metadata, err := s.metadata(ctx)
	if err != nil {
		return nil, err
	}
	if len(metadata) == 0 {
		return nil, ErrEmpty
	}
	if metadata["schema_version"] != SchemaVersion {
		return nil, fmt.Errorf("%w: schema version %s", ErrStale, metadata["schema_version"])
	}
	if filepath.Clean(metadata["root"]) != filepath.Clean(root) {
		return nil, fmt.Errorf("%w: saved for %s", ErrStale, metadata["root"])
	}

	st := state.NewState(metadata["root"])
	st.Version = metadata["state_version"]
	st.ParserVersion = metadata["parser_version"]
	if updated, err := time.Parse(time.RFC3339Nano, metadata["updated_at"]); err == nil {
		st.UpdatedAt = updated
	}

	rows, err := s.db.QueryContext(ctx, "SELECT path, record FROM files")
	if err != nil {
		return nil, fmt.Errorf("query cached files: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			path   string
			record []byte
		)
		if err := rows.Scan(&path, &record); err != nil {
			return nil, fmt.Errorf("scan cached file: %w", err)
		}
		var fs state.FileState
		if err := json.Unmarshal(record, &fs); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrStale, path, err)
		}
		st.Files[path] = fs
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read cached files: %w", err)
	}
	return st, nil
}

// Clear drops everything cached.
func (s *Store) Clear(ctx context.Context) error {
	for _, stmt := range []string{"DELETE FROM files", "DELETE FROM metadata"} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
	}
	s.logger.Debug("cache cleared", "path", s.path)
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) metadata(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM metadata")
	if err != nil {
		return nil, fmt.Errorf("query cache metadata: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan cache metadata: %w", err)
		}
		out[key] = value
	}
	return out, rows.Err()
}
