package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ana-research/canvas/pkg/domain"
	"github.com/ana-research/canvas/pkg/storage"
)

func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(t.TempDir(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	sess := &domain.Session{
		ID:        "s1",
		Title:     "Test",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
		Preview:   "preview",
		State: domain.ResearchState{
			Title:    "Test",
			Sections: []domain.Section{{Idx: 0, Title: "A", Content: "body"}},
		},
	}
	if err := s.PutSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if got.Title != "Test" || len(got.State.Sections) != 1 || got.State.Sections[0].Content != "body" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestGetMissingSession(t *testing.T) {
	s := newStore(t)
	got, err := s.GetSession(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil for missing session, got %+v", got)
	}
}

func TestCorruptedSessionReadsAsAbsent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.PutSession(ctx, &domain.Session{ID: "s1"}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.sessionPath("s1"), []byte("{garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("corruption should not be an error: %v", err)
	}
	if got != nil {
		t.Errorf("expected corrupted record to read as absent")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.PutSession(ctx, &domain.Session{ID: "s1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteSession(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteSession(ctx, "s1"); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
}

func TestIndexRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	index := []domain.SessionMetadata{
		{ID: "b", Title: "Second"},
		{ID: "a", Title: "First"},
	}
	if err := s.PutIndex(ctx, index); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetIndex(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("index order not preserved: %+v", got)
	}
}

func TestActivePointer(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if id, _ := s.GetActiveID(ctx); id != "" {
		t.Errorf("expected empty pointer, got %q", id)
	}
	if err := s.PutActiveID(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if id, _ := s.GetActiveID(ctx); id != "s1" {
		t.Errorf("pointer = %q, want s1", id)
	}
	if err := s.PutActiveID(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if id, _ := s.GetActiveID(ctx); id != "" {
		t.Errorf("pointer not cleared: %q", id)
	}
	// Clearing twice is fine.
	if err := s.PutActiveID(ctx, ""); err != nil {
		t.Fatal(err)
	}
}

func TestQuotaRejectsOversizedWrite(t *testing.T) {
	s := newStore(t, WithQuota(512))
	ctx := context.Background()

	big := &domain.Session{
		ID: "big",
		State: domain.ResearchState{
			Sections: []domain.Section{{Content: strings.Repeat("x", 2048)}},
		},
	}
	err := s.PutSession(ctx, big)
	if !errors.Is(err, storage.ErrStorageFull) {
		t.Fatalf("expected ErrStorageFull, got %v", err)
	}

	// The failed write must not leave a partial record behind.
	got, _ := s.GetSession(ctx, "big")
	if got != nil {
		t.Errorf("rejected write left a record")
	}
}

func TestQuotaCountsExistingKeys(t *testing.T) {
	s := newStore(t, WithQuota(600))
	ctx := context.Background()

	pad := strings.Repeat("x", 300)
	if err := s.PutSession(ctx, &domain.Session{ID: "a", Preview: pad}); err != nil {
		t.Fatal(err)
	}
	err := s.PutSession(ctx, &domain.Session{ID: "b", Preview: pad})
	if !errors.Is(err, storage.ErrStorageFull) {
		t.Fatalf("expected ErrStorageFull once quota is shared, got %v", err)
	}

	// Overwriting a's own key at the same size still fits.
	if err := s.PutSession(ctx, &domain.Session{ID: "a", Preview: pad}); err != nil {
		t.Errorf("overwrite within quota failed: %v", err)
	}
}

func TestFilesLiveUnderSessionsDir(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if err := s.PutSession(ctx, &domain.Session{ID: "s1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(s.root, "sessions", "s1.json")); err != nil {
		t.Errorf("expected per-session file: %v", err)
	}
}
