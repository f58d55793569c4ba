// Package store provides a SQLite-backed cache for corpus embeddings.
// Entries are keyed by the SHA-256 of the corpus content plus the embedding
// model name, so an unchanged corpus never hits the embedding provider twice
// and any edit to the corpus invalidates the entry automatically.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quizmind/mcqa-go/internal/rag"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// EmbeddingCache persists embedded corpus chunks in a local SQLite database.
// It is safe for concurrent use.
type EmbeddingCache struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultCachePath returns the default path for the embedding cache database.
// It resolves to ~/.mcqa/embeddings.db, creating the directory if needed.
func DefaultCachePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".mcqa")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "embeddings.db"), nil
}

// Open opens (or creates) an EmbeddingCache at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*EmbeddingCache, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	c := &EmbeddingCache{db: db}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// migrate creates the schema if it does not already exist.
func (c *EmbeddingCache) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS corpora (
    corpus_hash  TEXT    NOT NULL,
    model        TEXT    NOT NULL,
    chunk_count  INTEGER NOT NULL,
    created_at   INTEGER NOT NULL,  -- Unix timestamp (seconds)
    PRIMARY KEY (corpus_hash, model)
);
CREATE TABLE IF NOT EXISTS embeddings (
    corpus_hash  TEXT    NOT NULL,
    model        TEXT    NOT NULL,
    seq          INTEGER NOT NULL,
    chunk_id     TEXT    NOT NULL,
    source       TEXT    NOT NULL,
    content      TEXT    NOT NULL,
    vector       TEXT    NOT NULL,  -- JSON array of float32
    PRIMARY KEY (corpus_hash, model, seq)
);
`
	if _, err := c.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Load returns the cached chunks for the given corpus hash and model, ordered
// by their position in the corpus. The second return is false on a miss. An
// entry whose row count disagrees with its recorded chunk count is reported
// as an error so callers can fall back to re-embedding.
func (c *EmbeddingCache) Load(ctx context.Context, corpusHash, model string) ([]rag.Chunk, bool, error) {
	var count int
	err := c.db.QueryRowContext(ctx,
		`SELECT chunk_count FROM corpora WHERE corpus_hash = ? AND model = ?`,
		corpusHash, model).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: load: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, `
SELECT seq, chunk_id, source, content, vector
FROM   embeddings
WHERE  corpus_hash = ? AND model = ?
ORDER  BY seq ASC`, corpusHash, model)
	if err != nil {
		return nil, false, fmt.Errorf("store: load: %w", err)
	}
	defer rows.Close()

	var chunks []rag.Chunk
	for rows.Next() {
		var ch rag.Chunk
		var vec string
		if err := rows.Scan(&ch.Seq, &ch.ID, &ch.Source, &ch.Text, &vec); err != nil {
			return nil, false, fmt.Errorf("store: load scan: %w", err)
		}
		if err := json.Unmarshal([]byte(vec), &ch.Vector); err != nil {
			return nil, false, fmt.Errorf("store: load vector for chunk %d: %w", ch.Seq, err)
		}
		chunks = append(chunks, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("store: load rows: %w", err)
	}
	if len(chunks) != count {
		return nil, false, fmt.Errorf("store: cache entry holds %d of %d chunks", len(chunks), count)
	}
	return chunks, true, nil
}

// Save stores chunks under the given corpus hash and model, replacing any
// previous entry for that key. The write is transactional: a reader never
// observes a half-written entry.
func (c *EmbeddingCache) Save(ctx context.Context, corpusHash, model string, chunks []rag.Chunk) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: save: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM embeddings WHERE corpus_hash = ? AND model = ?`,
		`DELETE FROM corpora WHERE corpus_hash = ? AND model = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, corpusHash, model); err != nil {
			return fmt.Errorf("store: save clear: %w", err)
		}
	}

	const ins = `
INSERT INTO embeddings (corpus_hash, model, seq, chunk_id, source, content, vector)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	stmt, err := tx.PrepareContext(ctx, ins)
	if err != nil {
		return fmt.Errorf("store: save prepare: %w", err)
	}
	defer stmt.Close()

	for _, ch := range chunks {
		vec, err := json.Marshal(ch.Vector)
		if err != nil {
			return fmt.Errorf("store: save vector for chunk %d: %w", ch.Seq, err)
		}
		if _, err := stmt.ExecContext(ctx, corpusHash, model, ch.Seq, ch.ID, ch.Source, ch.Text, string(vec)); err != nil {
			return fmt.Errorf("store: save chunk %d: %w", ch.Seq, err)
		}
	}

	const mark = `INSERT INTO corpora (corpus_hash, model, chunk_count, created_at) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, mark, corpusHash, model, len(chunks), time.Now().Unix()); err != nil {
		return fmt.Errorf("store: save mark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: save commit: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (c *EmbeddingCache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
