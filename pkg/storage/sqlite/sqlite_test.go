package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ana-research/canvas/pkg/domain"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "canvas.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestJournalModeIsWAL(t *testing.T) {
	s := newStore(t)

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	sess := &domain.Session{
		ID:      "s1",
		Title:   "Test",
		Preview: "preview",
		State: domain.ResearchState{
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
	if got == nil || got.Title != "Test" || len(got.State.Sections) != 1 {
		t.Errorf("round trip mismatch: %+v", got)
	}

	// Overwrite replaces, not duplicates.
	sess.Title = "Renamed"
	if err := s.PutSession(ctx, sess); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetSession(ctx, "s1")
	if got.Title != "Renamed" {
		t.Errorf("overwrite not applied: %q", got.Title)
	}
}

func TestMissingAndDeleted(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if got, err := s.GetSession(ctx, "nope"); err != nil || got != nil {
		t.Errorf("missing session should read as (nil, nil), got (%v, %v)", got, err)
	}

	if err := s.PutSession(ctx, &domain.Session{ID: "s1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteSession(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteSession(ctx, "s1"); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
	if got, _ := s.GetSession(ctx, "s1"); got != nil {
		t.Errorf("deleted session still present")
	}
}

func TestIndexAndActivePointer(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if idx, err := s.GetIndex(ctx); err != nil || idx != nil {
		t.Errorf("fresh index should be empty, got (%v, %v)", idx, err)
	}

	index := []domain.SessionMetadata{{ID: "b"}, {ID: "a"}}
	if err := s.PutIndex(ctx, index); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetIndex(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "b" {
		t.Errorf("index order not preserved: %+v", got)
	}

	if err := s.PutActiveID(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if id, _ := s.GetActiveID(ctx); id != "b" {
		t.Errorf("pointer = %q, want b", id)
	}
	if err := s.PutActiveID(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if id, _ := s.GetActiveID(ctx); id != "" {
		t.Errorf("pointer not cleared: %q", id)
	}
}
