package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS documents (
	path       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// SQLiteStorage implements Storage on a single SQLite table keyed by path.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (and migrates) the database at path. Use ":memory:"
// for a throwaway store.
func NewSQLiteStorage(ctx context.Context, path string) (*SQLiteStorage, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite works best with a single writer; it also keeps ":memory:" on one connection.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func normalize(path string) string {
	return strings.Trim(path, "/")
}

func (s *SQLiteStorage) Read(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ?`, normalize(path)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func (s *SQLiteStorage) Write(ctx context.Context, path string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (path, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		normalize(path), data)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, path string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, normalize(path))
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStorage) List(ctx context.Context, prefix string) ([]string, error) {
	dir := normalize(prefix)
	if dir != "" {
		dir += "/"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM documents WHERE substr(path, 1, ?) = ? ORDER BY path`, len(dir), dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		// Only direct children, matching the filesystem backend.
		if strings.Contains(p[len(dir):], "/") {
			continue
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	return paths, nil
}

func (s *SQLiteStorage) Exists(ctx context.Context, path string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE path = ?`, normalize(path)).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return true, nil
}
