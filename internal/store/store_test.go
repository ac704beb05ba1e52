package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FocuswithJustin/LyricScope/core/digest"
	"github.com/FocuswithJustin/LyricScope/core/errors"
)

// newTestStore opens a store on disk with a clock that advances one
// second per call.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sheets.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "  Night Song ", "I saw the light\nburning bright")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Title != "Night Song" {
		t.Errorf("Title = %q, want trimmed title", created.Title)
	}
	if created.Digest != digest.String(created.Body) {
		t.Errorf("Digest does not match body")
	}

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Body != created.Body || got.Title != created.Title || got.Digest != created.Digest {
		t.Errorf("Get = %+v, want %+v", got, created)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) || !got.UpdatedAt.Equal(created.UpdatedAt) {
		t.Errorf("timestamps did not round trip: %v %v", got.CreatedAt, got.UpdatedAt)
	}
}

func TestCreateDefaults(t *testing.T) {
	s := newTestStore(t)

	sh, err := s.Create(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sh.Title != DefaultTitle {
		t.Errorf("Title = %q, want %q", sh.Title, DefaultTitle)
	}
	if sh.Digest != digest.String("") {
		t.Errorf("empty body digest mismatch")
	}
}

func TestCreateValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		title string
		body  string
	}{
		{"title too long", strings.Repeat("x", MaxTitleLength+1), ""},
		{"multi-line title", "a\nb", ""},
		{"body too large", "t", strings.Repeat("a", MaxBodyBytes+1)},
		{"invalid utf8", "t", "\xff\xfe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, tt.title, tt.body)
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("Create error = %v, want invalid input", err)
			}
		})
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "6f1c2a3e-0000-4000-8000-000000000000")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Get(unknown) error = %v, want not found", err)
	}

	_, err = s.Get(ctx, "not-a-uuid")
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Get(malformed) error = %v, want invalid input", err)
	}
}

func TestSave(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sh, err := s.Create(ctx, "Draft", "one line")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	t.Run("unchanged body is a no-op", func(t *testing.T) {
		got, changed, err := s.Save(ctx, sh.ID, "one line")
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		if changed {
			t.Error("changed = true for identical body")
		}
		if !got.UpdatedAt.Equal(sh.UpdatedAt) {
			t.Errorf("UpdatedAt moved: %v -> %v", sh.UpdatedAt, got.UpdatedAt)
		}
	})

	t.Run("new body is written", func(t *testing.T) {
		got, changed, err := s.Save(ctx, sh.ID, "one line\ntwo line")
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		if !changed {
			t.Error("changed = false for new body")
		}
		if !got.UpdatedAt.After(sh.UpdatedAt) {
			t.Errorf("UpdatedAt did not advance")
		}

		reloaded, err := s.Get(ctx, sh.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if reloaded.Body != "one line\ntwo line" {
			t.Errorf("Body = %q", reloaded.Body)
		}
		if reloaded.Digest != digest.String(reloaded.Body) {
			t.Error("stored digest does not match body")
		}
		if !reloaded.CreatedAt.Equal(sh.CreatedAt) {
			t.Error("CreatedAt changed on save")
		}
	})

	t.Run("missing sheet", func(t *testing.T) {
		_, _, err := s.Save(ctx, "6f1c2a3e-0000-4000-8000-000000000000", "x")
		if !errors.Is(err, errors.ErrNotFound) {
			t.Errorf("Save error = %v, want not found", err)
		}
	})
}

func TestRename(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sh, err := s.Create(ctx, "Old", "body")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	renamed, err := s.Rename(ctx, sh.ID, "New")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if renamed.Title != "New" || renamed.Body != "body" {
		t.Errorf("Rename = %+v", renamed)
	}

	got, err := s.Get(ctx, sh.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "New" {
		t.Errorf("Title = %q, want New", got.Title)
	}

	if _, err := s.Rename(ctx, sh.ID, strings.Repeat("y", MaxTitleLength+1)); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Rename(long) error = %v, want invalid input", err)
	}
}

func TestListOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if sheets, err := s.List(ctx); err != nil || len(sheets) != 0 {
		t.Fatalf("List(empty) = %v, %v", sheets, err)
	}

	first, _ := s.Create(ctx, "first", "a")
	second, _ := s.Create(ctx, "second", "b")
	if _, _, err := s.Save(ctx, first.ID, "a changed"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	sheets, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sheets) != 2 {
		t.Fatalf("len = %d, want 2", len(sheets))
	}
	if sheets[0].ID != first.ID || sheets[1].ID != second.ID {
		t.Errorf("order = %s, %s; want most recently updated first", sheets[0].Title, sheets[1].Title)
	}
	for _, sh := range sheets {
		if sh.Body != "" {
			t.Errorf("List returned body for %s", sh.ID)
		}
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sh, _ := s.Create(ctx, "gone", "soon")
	if err := s.Delete(ctx, sh.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, sh.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Get after delete error = %v, want not found", err)
	}
	if err := s.Delete(ctx, sh.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second Delete error = %v, want not found", err)
	}
}

func TestReopenKeepsSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheets.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sh, err := s.Create(ctx, "persist", "line one")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.Get(ctx, sh.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Body != "line one" {
		t.Errorf("Body = %q", got.Body)
	}
	if s.Path() != path {
		t.Errorf("Path = %q, want %q", s.Path(), path)
	}
}

func TestMemoryStore(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := s.Create(context.Background(), "mem", "x"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	sheets, err := s.List(context.Background())
	if err != nil || len(sheets) != 1 {
		t.Fatalf("List = %v, %v", sheets, err)
	}
}

func TestDump(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, _ := s.Create(ctx, "First", "one")
	second, _ := s.Create(ctx, "Second", "two")
	if _, _, err := s.Save(ctx, first.ID, "one more"); err != nil {
		t.Fatal(err)
	}

	sheets, err := s.Dump(ctx)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if len(sheets) != 2 {
		t.Fatalf("Dump returned %d sheets", len(sheets))
	}
	if sheets[0].ID != first.ID || sheets[1].ID != second.ID {
		t.Errorf("Dump order = %s, %s; want creation order", sheets[0].Title, sheets[1].Title)
	}
	if sheets[0].Body != "one more" {
		t.Errorf("Dump body = %q", sheets[0].Body)
	}
}

func TestRestore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	orig, _ := s.Create(ctx, "Night", "I saw the light")
	backup := *orig

	// identical or older copies leave the sheet alone
	wrote, err := s.Restore(ctx, backup)
	if err != nil || wrote {
		t.Fatalf("Restore same copy = %v, %v", wrote, err)
	}
	if _, _, err := s.Save(ctx, orig.ID, "shining so bright"); err != nil {
		t.Fatal(err)
	}
	if wrote, _ := s.Restore(ctx, backup); wrote {
		t.Error("older backup replaced a newer sheet")
	}

	// a newer copy wins
	newer := backup
	newer.Title = "Night (restored)"
	newer.Body = "restored body"
	newer.UpdatedAt = backup.UpdatedAt.Add(time.Hour)
	if wrote, err := s.Restore(ctx, newer); err != nil || !wrote {
		t.Fatalf("Restore newer = %v, %v", wrote, err)
	}
	got, _ := s.Get(ctx, orig.ID)
	if got.Body != "restored body" || got.Title != "Night (restored)" || got.Digest != digest.String("restored body") {
		t.Errorf("after restore = %+v", got)
	}
	if !got.CreatedAt.Equal(orig.CreatedAt) {
		t.Errorf("CreatedAt changed to %v", got.CreatedAt)
	}

	// a missing sheet is inserted with its own ID and timestamps
	gone := newer
	gone.ID = "3b0c8a4e-2f7d-4c1a-9e55-7d1f0b6a2c90"
	if wrote, err := s.Restore(ctx, gone); err != nil || !wrote {
		t.Fatalf("Restore missing = %v, %v", wrote, err)
	}
	got, err = s.Get(ctx, gone.ID)
	if err != nil {
		t.Fatalf("Get restored: %v", err)
	}
	if !got.UpdatedAt.Equal(gone.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, gone.UpdatedAt)
	}
}

func TestRestoreValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name  string
		sheet Sheet
	}{
		{"bad id", Sheet{ID: "nope", CreatedAt: now, UpdatedAt: now}},
		{"multi-line title", Sheet{ID: "3b0c8a4e-2f7d-4c1a-9e55-7d1f0b6a2c90", Title: "a\nb", CreatedAt: now, UpdatedAt: now}},
		{"no timestamps", Sheet{ID: "3b0c8a4e-2f7d-4c1a-9e55-7d1f0b6a2c90"}},
		{"bad body", Sheet{ID: "3b0c8a4e-2f7d-4c1a-9e55-7d1f0b6a2c90", Body: "\xff", CreatedAt: now, UpdatedAt: now}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Restore(ctx, tt.sheet); !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("Restore = %v, want invalid input", err)
			}
		})
	}
}

func TestCreateConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.newID = func() string { return "6f1c1d8e-8a55-4b55-9a3e-0a7f2d7b1c11" }

	if _, err := s.Create(ctx, "first", "day"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := s.Create(ctx, "second", "way")
	if !errors.Is(err, errors.ErrAlreadyExists) {
		t.Fatalf("duplicate id error = %v, want ErrAlreadyExists", err)
	}
	if errors.Code(err) != errors.CodeConflict {
		t.Errorf("Code = %q, want %q", errors.Code(err), errors.CodeConflict)
	}
}

func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheets.db")
	rw, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	created, err := rw.Create(context.Background(), "Night Song", "I saw the light")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rw.Close()

	s, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly: %v", err)
	}
	defer s.Close()
	if !s.ReadOnly() {
		t.Error("ReadOnly() = false")
	}

	got, err := s.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Body != created.Body {
		t.Errorf("Body = %q, want %q", got.Body, created.Body)
	}
	if _, err := s.Create(context.Background(), "nope", "x"); err == nil {
		t.Error("Create on a read-only store succeeded")
	}
}

func TestOpenReadOnlyErrors(t *testing.T) {
	_, err := OpenReadOnly(filepath.Join(t.TempDir(), "missing.db"))
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing database error = %v, want ErrNotFound", err)
	}
	_, err = OpenReadOnly(":memory:")
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf(":memory: error = %v, want ErrInvalidInput", err)
	}
}
