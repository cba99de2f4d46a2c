package offline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"precioverdadero/internal/constants"

	_ "modernc.org/sqlite"
)

// Store is a single string-keyed slot holding the serialized queue.
// Load returns (nil, nil) when nothing has been saved yet.
type Store interface {
	Load() ([]byte, error)
	Save(data []byte) error
	Close() error
}

// FileStore keeps the queue in one JSON file. Saves go through a temp file
// and a rename so readers never observe a half-written blob.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, constants.DefaultDirectoryPermissions); err != nil {
			return nil, fmt.Errorf("create queue directory: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Load() ([]byte, error) {
	data, err := os.ReadFile(s.path) // #nosec G304 - path comes from validated config
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func (s *FileStore) Save(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, constants.DefaultFilePermissions); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return err
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// SQLiteStore keeps the queue as one row of a key/value table in an
// embedded SQLite file. Useful when several client processes share a
// queue: each save is a single-row upsert.
type SQLiteStore struct {
	db  *sql.DB
	key string
}

const kvSchema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, constants.DefaultDirectoryPermissions); err != nil {
			return nil, fmt.Errorf("create queue directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open queue database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), kvSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create queue table: %w", err)
	}
	return &SQLiteStore{db: db, key: constants.PendingCommentsKey}, nil
}

func (s *SQLiteStore) Load() ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(context.Background(), "SELECT value FROM kv WHERE key = ?", s.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func (s *SQLiteStore) Save(data []byte) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		s.key, string(data))
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// MemoryStore is a process-local store. SetSaveError makes subsequent
// saves fail, which is how a full or unavailable store is simulated.
type MemoryStore struct {
	mu      sync.Mutex
	data    []byte
	saveErr error
	loadErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.data == nil {
		return nil, nil
	}
	return append([]byte(nil), s.data...), nil
}

func (s *MemoryStore) Save(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) SetSaveError(err error) {
	s.mu.Lock()
	s.saveErr = err
	s.mu.Unlock()
}

func (s *MemoryStore) SetLoadError(err error) {
	s.mu.Lock()
	s.loadErr = err
	s.mu.Unlock()
}

// Raw replaces the stored blob, bypassing the queue.
func (s *MemoryStore) Raw(data []byte) {
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
}

// Open builds the store selected by backend ("file", "sqlite" or "memory").
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", "file":
		return NewFileStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", backend)
	}
}
