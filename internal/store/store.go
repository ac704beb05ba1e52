// Package store persists lyric sheets in a SQLite database.
//
// The editor loads a sheet once and saves it on every change, so Save is
// cheap when the body has not moved: it compares digests and skips the
// write.
package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"io/fs"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/LyricScope/core/digest"
	"github.com/FocuswithJustin/LyricScope/core/errors"
	"github.com/FocuswithJustin/LyricScope/core/sqlite"
	"github.com/FocuswithJustin/LyricScope/internal/logging"
)

const (
	// DefaultTitle is used when a sheet is created without one.
	DefaultTitle = "Untitled"
	// MaxTitleLength is the longest accepted title, in characters.
	MaxTitleLength = 200
	// MaxBodyBytes caps a sheet body.
	MaxBodyBytes = 1 << 20
)

const schema = `
CREATE TABLE IF NOT EXISTS sheets (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	body       TEXT NOT NULL,
	digest     TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS sheets_updated_at ON sheets (updated_at);
`

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Sheet is a persisted lyric buffer.
type Sheet struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Digest    string    `json:"digest"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a sheet database. It is safe for concurrent use.
type Store struct {
	db       *sql.DB
	path     string
	readOnly bool
	now      func() time.Time
	newID    func() string
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory store.
func Open(path string) (*Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.NewIO("migrate", path, err)
	}
	return newStore(db, path, false), nil
}

// OpenReadOnly opens an existing database without write access. Every
// mutating call fails.
func OpenReadOnly(path string) (*Store, error) {
	if path == ":memory:" {
		return nil, errors.NewValidation("path", "an in-memory store cannot be opened read-only")
	}
	if _, err := os.Stat(path); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewNotFound("database", path)
		}
		return nil, errors.NewIO("stat", path, err)
	}
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	return newStore(db, path, true), nil
}

func newStore(db *sql.DB, path string, readOnly bool) *Store {
	return &Store{
		db:       db,
		path:     path,
		readOnly: readOnly,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// ReadOnly reports whether the store was opened with OpenReadOnly.
func (s *Store) ReadOnly() bool {
	return s.readOnly
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create stores a new sheet.
func (s *Store) Create(ctx context.Context, title, body string) (*Sheet, error) {
	title, err := cleanTitle(title)
	if err != nil {
		return nil, err
	}
	if err := checkBody(body); err != nil {
		return nil, err
	}

	now := s.now()
	sh := &Sheet{
		ID:        s.newID(),
		Title:     title,
		Body:      body,
		Digest:    digest.String(body),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sheets (id, title, body, digest, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sh.ID, sh.Title, sh.Body, sh.Digest, formatTime(now), formatTime(now))
	if isUniqueViolation(err) {
		return nil, errors.NewConflict("sheet", sh.ID)
	}
	if err != nil {
		return nil, errors.NewIO("insert", "sheets", err)
	}

	logging.SheetEvent(ctx, "created", sh.ID, "title", sh.Title)
	return sh, nil
}

// Get loads a sheet with its body.
func (s *Store) Get(ctx context.Context, id string) (*Sheet, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, body, digest, created_at, updated_at FROM sheets WHERE id = ?`, id)
	sh, err := scanSheet(row.Scan, true)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound("sheet", id)
	}
	if err != nil {
		return nil, errors.NewIO("query", "sheets", err)
	}
	return sh, nil
}

// Save replaces the body of a sheet. It reports whether anything was
// written; an unchanged body leaves updated_at alone.
func (s *Store) Save(ctx context.Context, id, body string) (*Sheet, bool, error) {
	if err := checkBody(body); err != nil {
		return nil, false, err
	}
	sh, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}

	sum := digest.String(body)
	if sum == sh.Digest {
		return sh, false, nil
	}

	now := s.now()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sheets SET body = ?, digest = ?, updated_at = ? WHERE id = ?`,
		body, sum, formatTime(now), id); err != nil {
		return nil, false, errors.NewIO("update", "sheets", err)
	}
	sh.Body = body
	sh.Digest = sum
	sh.UpdatedAt = now

	logging.SheetEvent(ctx, "saved", id, "digest", digest.Short(sum))
	return sh, true, nil
}

// Rename changes the title of a sheet.
func (s *Store) Rename(ctx context.Context, id, title string) (*Sheet, error) {
	title, err := cleanTitle(title)
	if err != nil {
		return nil, err
	}
	sh, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sh.Title == title {
		return sh, nil
	}

	now := s.now()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sheets SET title = ?, updated_at = ? WHERE id = ?`,
		title, formatTime(now), id); err != nil {
		return nil, errors.NewIO("update", "sheets", err)
	}
	sh.Title = title
	sh.UpdatedAt = now

	logging.SheetEvent(ctx, "renamed", id, "title", title)
	return sh, nil
}

// List returns every sheet without its body, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Sheet, error) {
	return s.query(ctx, false,
		`SELECT id, title, digest, created_at, updated_at FROM sheets ORDER BY updated_at DESC, id`)
}

// Dump returns every sheet with its body, oldest first.
func (s *Store) Dump(ctx context.Context) ([]Sheet, error) {
	return s.query(ctx, true,
		`SELECT id, title, body, digest, created_at, updated_at FROM sheets ORDER BY created_at, id`)
}

func (s *Store) query(ctx context.Context, withBody bool, query string) ([]Sheet, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewIO("query", "sheets", err)
	}
	defer rows.Close()

	sheets := []Sheet{}
	for rows.Next() {
		sh, err := scanSheet(rows.Scan, withBody)
		if err != nil {
			return nil, errors.NewIO("scan", "sheets", err)
		}
		sheets = append(sheets, *sh)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIO("query", "sheets", err)
	}
	return sheets, nil
}

// Restore writes a sheet read back from a backup, keeping its ID and
// timestamps. A sheet that already exists is replaced only when the
// restored copy was updated later. Restore reports whether it wrote.
func (s *Store) Restore(ctx context.Context, sh Sheet) (bool, error) {
	if err := checkID(sh.ID); err != nil {
		return false, err
	}
	title, err := cleanTitle(sh.Title)
	if err != nil {
		return false, err
	}
	if err := checkBody(sh.Body); err != nil {
		return false, err
	}
	if sh.CreatedAt.IsZero() || sh.UpdatedAt.IsZero() {
		return false, errors.NewValidation("sheet", "restored sheet has no timestamps")
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO sheets (id, title, body, digest, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	title = excluded.title,
	body = excluded.body,
	digest = excluded.digest,
	updated_at = excluded.updated_at
WHERE excluded.updated_at > sheets.updated_at`,
		sh.ID, title, sh.Body, digest.String(sh.Body), formatTime(sh.CreatedAt), formatTime(sh.UpdatedAt))
	if err != nil {
		return false, errors.NewIO("restore", "sheets", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewIO("restore", "sheets", err)
	}
	if n > 0 {
		logging.SheetEvent(ctx, "restored", sh.ID, "title", title)
	}
	return n > 0, nil
}

// Delete removes a sheet.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM sheets WHERE id = ?`, id)
	if err != nil {
		return errors.NewIO("delete", "sheets", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewIO("delete", "sheets", err)
	}
	if n == 0 {
		return errors.NewNotFound("sheet", id)
	}

	logging.SheetEvent(ctx, "deleted", id)
	return nil
}

func scanSheet(scan func(dest ...any) error, withBody bool) (*Sheet, error) {
	var (
		sh               Sheet
		created, updated string
		err              error
	)
	if withBody {
		err = scan(&sh.ID, &sh.Title, &sh.Body, &sh.Digest, &created, &updated)
	} else {
		err = scan(&sh.ID, &sh.Title, &sh.Digest, &created, &updated)
	}
	if err != nil {
		return nil, err
	}
	if sh.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, err
	}
	if sh.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return nil, err
	}
	return &sh, nil
}

// isUniqueViolation matches the constraint error text shared by both
// SQLite drivers.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func cleanTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultTitle, nil
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", errors.NewValidation("title", "title is too long")
	}
	if strings.ContainsAny(title, "\r\n") {
		return "", errors.NewValidation("title", "title must be a single line")
	}
	return title, nil
}

func checkBody(body string) error {
	if len(body) > MaxBodyBytes {
		return errors.NewValidation("body", "sheet body is too large")
	}
	if !utf8.ValidString(body) {
		return errors.NewValidation("body", "sheet body is not valid UTF-8")
	}
	return nil
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.NewValidation("id", "malformed sheet id")
	}
	return nil
}
