package transcript

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteArchive is a durable Archive backed by a single SQLite file.
type SQLiteArchive struct {
	db *sql.DB
}

// NewSQLiteArchive opens (creating if needed) the archive at path.
// Use ":memory:" for an ephemeral archive.
func NewSQLiteArchive(path string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS entries (
			hash TEXT PRIMARY KEY,
			parent_hash TEXT,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_entries_parent ON entries(parent_hash);`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteArchive{db: db}, nil
}

func (s *SQLiteArchive) Put(ctx context.Context, e *Entry) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO entries (hash, parent_hash, role, content, model)
		 VALUES (?, ?, ?, ?, ?)`,
		e.Hash, e.ParentHash, e.Role, e.Content, e.Model,
	)
	if err != nil {
		return false, fmt.Errorf("insert entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *SQLiteArchive) Get(ctx context.Context, hash string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT hash, parent_hash, role, content, model FROM entries WHERE hash = ?`, hash)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound{Hash: hash}
	}
	return e, err
}

func (s *SQLiteArchive) Has(ctx context.Context, hash string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE hash = ?`, hash).Scan(&n)
	return n > 0, err
}

func (s *SQLiteArchive) List(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hash, parent_hash, role, content, model FROM entries ORDER BY created_at, hash`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

func (s *SQLiteArchive) Heads(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, parent_hash, role, content, model FROM entries
		WHERE hash NOT IN (
			SELECT parent_hash FROM entries WHERE parent_hash IS NOT NULL
		)
		ORDER BY created_at, hash`)
	if err != nil {
		return nil, fmt.Errorf("list heads: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

func (s *SQLiteArchive) History(ctx context.Context, hash string) ([]*Entry, error) {
	var reversed []*Entry
	cur := hash
	for {
		e, err := s.Get(ctx, cur)
		if err != nil {
			return nil, err
		}
		reversed = append(reversed, e)
		if e.ParentHash == nil {
			break
		}
		cur = *e.ParentHash
	}

	out := make([]*Entry, len(reversed))
	for i, e := range reversed {
		out[len(reversed)-1-i] = e
	}
	return out, nil
}

func (s *SQLiteArchive) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var parent sql.NullString
	if err := row.Scan(&e.Hash, &parent, &e.Role, &e.Content, &e.Model); err != nil {
		return nil, err
	}
	if parent.Valid {
		e.ParentHash = &parent.String
	}
	return &e, nil
}

func collectEntries(rows *sql.Rows) ([]*Entry, error) {
	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
