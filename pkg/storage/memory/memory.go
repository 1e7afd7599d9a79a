// Package memory implements storage.Store as an in-process map. It backs
// tests and the degraded local-only mode, and can be told to reject writes to
// simulate a full or unavailable medium.
package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ana-research/canvas/pkg/domain"
	"github.com/ana-research/canvas/pkg/storage"
)

const (
	keyIndex         = "index"
	keyActive        = "active"
	sessionKeyPrefix = "session/"
)

// Store is an in-memory storage.Store. Values are kept serialized so reads
// exercise the same decode path as the durable backends.
type Store struct {
	mu       sync.RWMutex
	data     map[string][]byte
	writeErr error
}

var _ storage.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// FailWrites makes every subsequent write return err. Pass nil to restore
// normal operation.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// Corrupt overwrites a session's stored bytes with garbage, for testing the
// corrupted-record-reads-as-absent path.
func (s *Store) Corrupt(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionKeyPrefix+id] = []byte("{not json")
}

func (s *Store) put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.data[key] = value
	return nil
}

func (s *Store) get(key string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[key]
}

func (s *Store) PutSession(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.put(sessionKeyPrefix+sess.ID, data)
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	data := s.get(sessionKeyPrefix + id)
	if data == nil {
		return nil, nil
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		slog.Warn("Discarding corrupted session record", "id", id, "error", err)
		return nil, nil
	}
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionKeyPrefix+id)
	return nil
}

func (s *Store) PutIndex(ctx context.Context, index []domain.SessionMetadata) error {
	if index == nil {
		index = []domain.SessionMetadata{}
	}
	data, err := json.Marshal(index)
	if err != nil {
		return err
	}
	return s.put(keyIndex, data)
}

func (s *Store) GetIndex(ctx context.Context) ([]domain.SessionMetadata, error) {
	data := s.get(keyIndex)
	if data == nil {
		return nil, nil
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
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.writeErr != nil {
			return s.writeErr
		}
		delete(s.data, keyActive)
		return nil
	}
	return s.put(keyActive, []byte(id))
}

func (s *Store) GetActiveID(ctx context.Context) (string, error) {
	return string(s.get(keyActive)), nil
}

func (s *Store) Close() error { return nil }
