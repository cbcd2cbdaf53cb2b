package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// maxHashesPerQuery keeps IN lists below SQLite's bound-parameter limit.
const maxHashesPerQuery = 500

// SQLiteChunkStore implements ChunkStore using SQLite. Hashes are stored as the
// int64 with the same bit pattern, since SQLite integers are signed.
type SQLiteChunkStore struct {
	db *sql.DB
}

// NewSQLiteChunkStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteChunkStore(dbPath string) (*SQLiteChunkStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteChunkStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		hash INTEGER PRIMARY KEY,
		text TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertChunks inserts or replaces chunks in a transaction.
func (s *SQLiteChunkStore) UpsertChunks(ctx context.Context, chunks []*Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (hash, text, source, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(hash) DO UPDATE SET text = excluded.text, source = excluded.source`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, c := range chunks {
		c.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, int64(c.Hash), c.Text, c.Source, c.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunk returns the chunk stored under hash.
func (s *SQLiteChunkStore) GetChunk(ctx context.Context, hash uint64) (*Chunk, error) {
	var c Chunk
	var h int64
	err := s.db.QueryRowContext(ctx,
		`SELECT hash, text, source, created_at FROM chunks WHERE hash = ?`, int64(hash),
	).Scan(&h, &c.Text, &c.Source, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrChunkNotFound, hash)
	}
	if err != nil {
		return nil, err
	}
	c.Hash = uint64(h)
	return &c, nil
}

// GetChunksByHashes looks hashes up in batches. Duplicate and unknown hashes are tolerated.
func (s *SQLiteChunkStore) GetChunksByHashes(ctx context.Context, hashes []uint64) (map[uint64]*Chunk, error) {
	out := make(map[uint64]*Chunk, len(hashes))
	for start := 0; start < len(hashes); start += maxHashesPerQuery {
		end := min(start+maxHashesPerQuery, len(hashes))
		if err := s.getBatch(ctx, hashes[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteChunkStore) getBatch(ctx context.Context, hashes []uint64, out map[uint64]*Chunk) error {
	args := make([]any, len(hashes))
	for i, h := range hashes {
		args[i] = int64(h)
	}
	query := `SELECT hash, text, source, created_at FROM chunks WHERE hash IN (` +
		strings.TrimSuffix(strings.Repeat("?,", len(hashes)), ",") + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c Chunk
		var h int64
		if err := rows.Scan(&h, &c.Text, &c.Source, &c.CreatedAt); err != nil {
			return err
		}
		c.Hash = uint64(h)
		out[c.Hash] = &c
	}
	return rows.Err()
}

// DeleteChunksBySource removes every chunk recorded for source and returns how many went.
func (s *SQLiteChunkStore) DeleteChunksBySource(ctx context.Context, source string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, source)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountChunks returns the total number of chunks.
func (s *SQLiteChunkStore) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteChunkStore) Close() error {
	return s.db.Close()
}
