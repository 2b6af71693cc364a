package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/RyanBlaney/sonido-atlas/descriptors"
)

// Store keeps descriptor records keyed by audio file and analysis settings,
// so reruns over an unchanged catalog skip decoding.
type Store struct {
	db   *sql.DB
	path string
}

// Key identifies one analysis of one file. A record is reused only when the
// file's size, modification time and analysis settings all still match.
type Key struct {
	Path        string
	Size        int64
	ModTime     time.Time
	OptionsHash string
}

// KeyForFile stats path and builds its cache key.
func KeyForFile(path, optionsHash string) (Key, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Key{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Key{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return Key{
		Path:        abs,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		OptionsHash: optionsHash,
	}, nil
}

// Open creates or connects to the cache database at path and applies
// migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the cached record for key. A stale entry (same path, different
// size or mtime) is reported as a miss.
func (s *Store) Get(ctx context.Context, key Key) (*descriptors.Record, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT size, mod_time_ns, record_json FROM descriptors WHERE path = ? AND options_hash = ?`,
		key.Path,
		key.OptionsHash,
	)

	var (
		size    int64
		modTime int64
		payload string
	)
	err := row.Scan(&size, &modTime, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get descriptors: %w", err)
	}
	if size != key.Size || modTime != key.ModTime.UnixNano() {
		return nil, false, nil
	}

	var rec descriptors.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, false, fmt.Errorf("decode cached descriptors for %s: %w", key.Path, err)
	}
	return &rec, true, nil
}

// Put stores rec under key, replacing any previous entry for the same file
// and settings.
func (s *Store) Put(ctx context.Context, key Key, rec *descriptors.Record) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal descriptors: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO descriptors (path, size, mod_time_ns, options_hash, record_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (path, options_hash) DO UPDATE SET
             size = excluded.size,
             mod_time_ns = excluded.mod_time_ns,
             record_json = excluded.record_json,
             created_at = excluded.created_at`,
		key.Path,
		key.Size,
		key.ModTime.UnixNano(),
		key.OptionsHash,
		string(payload),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put descriptors: %w", err)
	}
	return nil
}

// Count returns the number of cached records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM descriptors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count descriptors: %w", err)
	}
	return n, nil
}

// Prune removes records computed with settings other than optionsHash.
func (s *Store) Prune(ctx context.Context, optionsHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM descriptors WHERE options_hash != ?`, optionsHash)
	if err != nil {
		return 0, fmt.Errorf("prune descriptors: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
