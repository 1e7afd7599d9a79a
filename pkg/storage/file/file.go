// Package file implements storage.Store on the local filesystem: one JSON
// file per session under sessions/, plus index.json and an active pointer
// file at the root. A byte quota models the bounded medium.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ana-research/canvas/pkg/domain"
	"github.com/ana-research/canvas/pkg/storage"
)

const (
	indexFile  = "index.json"
	activeFile = "active"
	sessionExt = ".json"

	// DefaultQuota caps total stored bytes, mirroring the low-single-digit
	// megabyte budget of browser-local storage.
	DefaultQuota = 5 << 20
)

// Store is a filesystem-backed storage.Store.
type Store struct {
	root  string
	quota int64
	mu    sync.Mutex
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithQuota overrides the total byte quota. Zero disables the quota check.
func WithQuota(bytes int64) Option {
	return func(s *Store) { s.quota = bytes }
}

// New creates the directory layout under root if needed and returns a Store.
func New(root string, opts ...Option) (*Store, error) {
	s := &Store{root: root, quota: DefaultQuota}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(s.sessionsDir(), 0755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return s, nil
}

func (s *Store) sessionsDir() string { return filepath.Join(s.root, "sessions") }

func (s *Store) sessionPath(id string) string {
	return filepath.Join(s.sessionsDir(), id+sessionExt)
}

func (s *Store) PutSession(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.ID, err)
	}
	return s.writeKey(s.sessionPath(sess.ID), data)
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	data, err := os.ReadFile(s.sessionPath(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read session %s: %v", storage.ErrStorageUnavailable, id, err)
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		// A corrupted record reads as absent.
		slog.Warn("Discarding corrupted session record", "id", id, "error", err)
		return nil, nil
	}
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	err := os.Remove(s.sessionPath(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (s *Store) PutIndex(ctx context.Context, index []domain.SessionMetadata) error {
	if index == nil {
		index = []domain.SessionMetadata{}
	}
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	return s.writeKey(filepath.Join(s.root, indexFile), data)
}

func (s *Store) GetIndex(ctx context.Context) ([]domain.SessionMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.root, indexFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read index: %v", storage.ErrStorageUnavailable, err)
	}
	var index []domain.SessionMetadata
	if err := json.Unmarshal(data, &index); err != nil {
		slog.Warn("Discarding corrupted session index", "error", err)
		return nil, nil
	}
	return index, nil
}

func (s *Store) PutActiveID(ctx context.Context, id string) error {
	path := filepath.Join(s.root, activeFile)
	if id == "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("clear active pointer: %w", err)
		}
		return nil
	}
	return s.writeKey(path, []byte(id))
}

func (s *Store) GetActiveID(ctx context.Context) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.root, activeFile))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: read active pointer: %v", storage.ErrStorageUnavailable, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Store) Close() error { return nil }

// writeKey writes a single key's file, enforcing the quota against the total
// size the store would occupy after the write.
func (s *Store) writeKey(path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quota > 0 {
		used, err := s.usage()
		if err != nil {
			return fmt.Errorf("%w: %v", storage.ErrStorageUnavailable, err)
		}
		var existing int64
		if fi, err := os.Stat(path); err == nil {
			existing = fi.Size()
		}
		if used-existing+int64(len(data)) > s.quota {
			return fmt.Errorf("%w: writing %s would exceed %d bytes", storage.ErrStorageFull, filepath.Base(path), s.quota)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: write %s: %v", storage.ErrStorageUnavailable, filepath.Base(path), err)
	}
	return nil
}

func (s *Store) usage() (int64, error) {
	var total int64
	for _, path := range []string{filepath.Join(s.root, indexFile), filepath.Join(s.root, activeFile)} {
		if fi, err := os.Stat(path); err == nil {
			total += fi.Size()
		}
	}
	entries, err := os.ReadDir(s.sessionsDir())
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if fi, err := e.Info(); err == nil {
			total += fi.Size()
		}
	}
	return total, nil
}
