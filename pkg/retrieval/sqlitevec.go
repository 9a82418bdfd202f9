package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

var registerVecOnce sync.Once

// SQLiteVecStore is a Retriever over a sqlite-vec index. The index is built
// by an external ingester; this module only queries it. Seed exists so
// tests and ingesters can load chunks through the same schema.
type SQLiteVecStore struct {
	db       *sql.DB
	embedder Embedder
	dim      int
}

// NewSQLiteVecStore opens (creating if needed) the chunk store at path.
// dim must match the embedder's vector width.
func NewSQLiteVecStore(path string, dim int, embedder Embedder) (*SQLiteVecStore, error) {
	registerVecOnce.Do(sqlite_vec.Auto)

	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS chunks (
			id INTEGER PRIMARY KEY,
			text TEXT NOT NULL UNIQUE,
			source_ref TEXT NOT NULL DEFAULT ''
		);
		CREATE VIRTUAL TABLE IF NOT EXISTS chunk_index USING vec0(
			embedding float[%d]
		);`, dim)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteVecStore{db: db, embedder: embedder, dim: dim}, nil
}

// Seed inserts chunks and their embeddings. Chunks whose text is already
// present are skipped, keeping the index free of exact duplicates.
func (s *SQLiteVecStore) Seed(ctx context.Context, chunks []Chunk) error {
	for _, c := range chunks {
		res, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO chunks (text, source_ref) VALUES (?, ?)`,
			c.Text, c.SourceRef,
		)
		if err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			continue
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		vec, err := s.embedder.Embed(ctx, c.Text)
		if err != nil {
			return fmt.Errorf("embed chunk: %w", err)
		}

		blob, err := sqlite_vec.SerializeFloat32(vec)
		if err != nil {
			return fmt.Errorf("serialize embedding: %w", err)
		}

		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO chunk_index (rowid, embedding) VALUES (?, ?)`,
			id, blob,
		); err != nil {
			return fmt.Errorf("insert embedding: %w", err)
		}
	}

	return nil
}

// Retrieve implements Retriever with a k-nearest-neighbor match over the
// vector index, nearest first.
func (s *SQLiteVecStore) Retrieve(ctx context.Context, query string, k int) ([]Chunk, error) {
	if k <= 0 {
		return nil, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.text, c.source_ref
		FROM chunk_index v
		JOIN chunks c ON c.id = v.rowid
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance`,
		blob, k,
	)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.Text, &c.SourceRef); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}

	return chunks, rows.Err()
}

// Count returns the number of indexed chunks.
func (s *SQLiteVecStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (s *SQLiteVecStore) Close() error {
	return s.db.Close()
}
