package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	bencherr "github.com/arkilian/membench/internal/errors"
)

// SQLiteAdapter implements Adapter on a single SQLite file.
// Scalars live in table kv; documents are JSON text in table documents and
// array lookups run through json_each.
type SQLiteAdapter struct {
	dbPath string
	db     *sql.DB

	getStmt  *sql.Stmt
	findStmt *sql.Stmt
}

// NewSQLiteAdapter creates an adapter for the database at dbPath.
func NewSQLiteAdapter(dbPath string) *SQLiteAdapter {
	return &SQLiteAdapter{dbPath: dbPath}
}

// Connect opens the database, creates the schema and prepares the read
// statements used on the hot path.
func (s *SQLiteAdapter) Connect(ctx context.Context) error {
	if s.dbPath == "" {
		return bencherr.NewValidationError(bencherr.CodeInvalidConfig, "sqlite path is empty")
	}
	if dir := filepath.Dir(s.dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return bencherr.NewConnectionError(bencherr.CodeConnectFailed,
				fmt.Sprintf("failed to create directory %s", dir), err)
		}
	}

	db, err := sql.Open("sqlite3", s.dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return bencherr.NewConnectionError(bencherr.CodeConnectFailed, "failed to open sqlite database", err)
	}
	// One call in flight at a time; a single connection keeps the WAL warm.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return bencherr.NewConnectionError(bencherr.CodeConnectFailed, "failed to ping sqlite database", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS documents (
			key  TEXT PRIMARY KEY,
			body TEXT NOT NULL
		);`); err != nil {
		db.Close()
		return bencherr.NewConnectionError(bencherr.CodeConnectFailed, "failed to initialize schema", err)
	}

	getStmt, err := db.PrepareContext(ctx, `SELECT value FROM kv WHERE key = ?`)
	if err != nil {
		db.Close()
		return bencherr.NewInternalError("failed to prepare kv lookup", err)
	}
	findStmt, err := db.PrepareContext(ctx, `
		SELECT CAST(j.key AS INTEGER)
		FROM documents d, json_each(d.body) j
		WHERE d.key = ? AND j.value = ?
		ORDER BY CAST(j.key AS INTEGER)
		LIMIT 1`)
	if err != nil {
		getStmt.Close()
		db.Close()
		return bencherr.NewInternalError("failed to prepare document lookup", err)
	}

	s.db = db
	s.getStmt = getStmt
	s.findStmt = findStmt
	return nil
}

// Close closes prepared statements and the database.
func (s *SQLiteAdapter) Close() error {
	if s.db == nil {
		return nil
	}
	if s.getStmt != nil {
		s.getStmt.Close()
	}
	if s.findStmt != nil {
		s.findStmt.Close()
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// SetScalar upserts key.
func (s *SQLiteAdapter) SetScalar(ctx context.Context, key, value string) error {
	if s.db == nil {
		return ErrNotConnected
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return bencherr.NewStorageError(bencherr.CodeOperationFailed, fmt.Sprintf("upsert %s", key), err)
	}
	return nil
}

// GetScalar selects the value at key.
func (s *SQLiteAdapter) GetScalar(ctx context.Context, key string) (string, bool, error) {
	if s.db == nil {
		return "", false, ErrNotConnected
	}
	var v string
	err := s.getStmt.QueryRowContext(ctx, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, bencherr.NewStorageError(bencherr.CodeOperationFailed, fmt.Sprintf("select %s", key), err)
	}
	return v, true, nil
}

// SetDocumentArray upserts the JSON array document at key.
func (s *SQLiteAdapter) SetDocumentArray(ctx context.Context, key, path string, values []string) error {
	if s.db == nil {
		return ErrNotConnected
	}
	if err := checkRootPath(path); err != nil {
		return err
	}
	body, err := encodeDocument(values)
	if err != nil {
		return bencherr.NewInternalError("failed to encode document", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (key, body) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET body = excluded.body`, key, string(body))
	if err != nil {
		return bencherr.NewStorageError(bencherr.CodeOperationFailed, fmt.Sprintf("upsert document %s", key), err)
	}
	return nil
}

// FindInDocumentArray returns the position of value via json_each.
func (s *SQLiteAdapter) FindInDocumentArray(ctx context.Context, key, path, value string) (int64, error) {
	if s.db == nil {
		return NotFound, ErrNotConnected
	}
	if err := checkRootPath(path); err != nil {
		return NotFound, err
	}
	var idx int64
	err := s.findStmt.QueryRowContext(ctx, key, value).Scan(&idx)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound, nil
	}
	if err != nil {
		return NotFound, bencherr.NewStorageError(bencherr.CodeOperationFailed, fmt.Sprintf("json_each %s", key), err)
	}
	return idx, nil
}
