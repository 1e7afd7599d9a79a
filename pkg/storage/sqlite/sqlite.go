// Package sqlite implements storage.Store on a single-file SQLite database.
// All records live in one kv table keyed the same way the file backend keys
// its files: one row per session, one row for the index, one for the active
// pointer.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/ana-research/canvas/pkg/domain"
	"github.com/ana-research/canvas/pkg/storage"
)

const (
	keyIndex         = "index"
	keyActive        = "active"
	sessionKeyPrefix = "session/"
)

// Store is a SQLite-backed storage.Store.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New opens (or creates) a SQLite database at the given path and runs
// migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", storage.ErrStorageUnavailable, key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", storage.ErrStorageUnavailable, key, err)
	}
	return value, nil
}

func (s *Store) PutSession(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.ID, err)
	}
	return s.put(ctx, sessionKeyPrefix+sess.ID, data)
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.get(ctx, sessionKeyPrefix+id)
	if err != nil || data == nil {
		return nil, err
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		slog.Warn("Discarding corrupted session record", "id", id, "error", err)
		return nil, nil
	}
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key=?`, sessionKeyPrefix+id)
	if err != nil {
		return fmt.Errorf("%w: delete session %s: %v", storage.ErrStorageUnavailable, id, err)
	}
	return nil
}

func (s *Store) PutIndex(ctx context.Context, index []domain.SessionMetadata) error {
	if index == nil {
		index = []domain.SessionMetadata{}
	}
	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	return s.put(ctx, keyIndex, data)
}

func (s *Store) GetIndex(ctx context.Context) ([]domain.SessionMetadata, error) {
	data, err := s.get(ctx, keyIndex)
	if err != nil || data == nil {
		return nil, err
	}
	var index []domain.SessionMetadata
	if err := json.Unmarshal(data, &index); err != nil {
		slog.Warn("Discarding corrupted session index", "error", err)
		return nil, nil
	}
	return index, nil
}

func (s *Store) PutActiveID(ctx context.Context, id string) error {
	if id == "" {
		_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key=?`, keyActive)
		if err != nil {
			return fmt.Errorf("%w: clear active pointer: %v", storage.ErrStorageUnavailable, err)
		}
		return nil
	}
	return s.put(ctx, keyActive, []byte(id))
}

func (s *Store) GetActiveID(ctx context.Context) (string, error) {
	data, err := s.get(ctx, keyActive)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
