// Package storage defines the durable key/value persistence contract for the
// canvas. Each session is stored under its own key; the metadata index and the
// active-session pointer each live under a single dedicated key. Storage is a
// best-effort durability layer: callers keep in-memory state authoritative and
// treat write failures as soft.
package storage

import (
	"context"
	"errors"

	"github.com/ana-research/canvas/pkg/domain"
)

// ErrStorageFull indicates the medium rejected a write because its capacity
// is exhausted.
var ErrStorageFull = errors.New("storage full")

// ErrStorageUnavailable indicates the medium cannot accept reads or writes at
// all (disabled, closed, or otherwise unreachable).
var ErrStorageUnavailable = errors.New("storage unavailable")

// Store persists session records, the metadata index, and the active-session
// pointer. Implementations must keep writes scoped to the target key so a
// failed write never corrupts other sessions.
type Store interface {
	// PutSession serializes and writes a full session record.
	PutSession(ctx context.Context, s *domain.Session) error

	// GetSession loads a session record. A missing or corrupted record is
	// reported as (nil, nil), not as an error.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// DeleteSession removes a session record. Deleting an absent record is
	// not an error.
	DeleteSession(ctx context.Context, id string) error

	// PutIndex replaces the aggregate metadata index.
	PutIndex(ctx context.Context, index []domain.SessionMetadata) error

	// GetIndex loads the metadata index. An absent or corrupted index reads
	// as empty.
	GetIndex(ctx context.Context) ([]domain.SessionMetadata, error)

	// PutActiveID persists the active-session pointer. An empty id clears it.
	PutActiveID(ctx context.Context, id string) error

	// GetActiveID loads the active-session pointer, or "" if none is set.
	GetActiveID(ctx context.Context) (string, error)

	// Close releases any resources held by the store.
	Close() error
}
