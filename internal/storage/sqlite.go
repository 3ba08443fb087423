// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/unistudy/unirag/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		filename TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		pages INTEGER NOT NULL,
		chunks INTEGER NOT NULL,
		ingested_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_fingerprint ON documents(fingerprint);

	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		sources TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_turns_created_at ON turns(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertDocument inserts or replaces the record for a filename.
func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *models.DocumentRecord) error {
	now := time.Now()
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = now
	}
	doc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (filename, fingerprint, pages, chunks, ingested_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(filename) DO UPDATE SET
		   fingerprint = excluded.fingerprint,
		   pages = excluded.pages,
		   chunks = excluded.chunks,
		   updated_at = excluded.updated_at`,
		doc.Filename, doc.Fingerprint, doc.Pages, doc.Chunks, doc.IngestedAt, doc.UpdatedAt,
	)
	return err
}

// GetDocument returns the record for a filename.
func (s *SQLiteStorage) GetDocument(ctx context.Context, filename string) (*models.DocumentRecord, error) {
	var doc models.DocumentRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT filename, fingerprint, pages, chunks, ingested_at, updated_at
		 FROM documents WHERE filename = ?`, filename,
	).Scan(&doc.Filename, &doc.Fingerprint, &doc.Pages, &doc.Chunks, &doc.IngestedAt, &doc.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document not found: %s", filename)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument removes the record for a filename. Deleting an unknown
// filename is not an error.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, filename string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE filename = ?`, filename)
	return err
}

// ListDocuments returns all document records ordered by filename.
func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]*models.DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT filename, fingerprint, pages, chunks, ingested_at, updated_at
		 FROM documents ORDER BY filename`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*models.DocumentRecord, 0)
	for rows.Next() {
		var doc models.DocumentRecord
		if err := rows.Scan(&doc.Filename, &doc.Fingerprint, &doc.Pages, &doc.Chunks, &doc.IngestedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// CountDocuments returns the number of registered documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// SaveTurn persists one question/answer exchange with its cited sources.
func (s *SQLiteStorage) SaveTurn(ctx context.Context, turn *models.ConversationTurn) error {
	sourcesJSON, err := json.Marshal(turn.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO turns (id, question, answer, sources, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		turn.ID, turn.Question, turn.Answer, string(sourcesJSON), turn.CreatedAt,
	)
	return err
}

// ListTurns returns the most recent turns, newest first.
func (s *SQLiteStorage) ListTurns(ctx context.Context, limit int) ([]*models.ConversationTurn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, answer, sources, created_at
		 FROM turns ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns := make([]*models.ConversationTurn, 0)
	for rows.Next() {
		var turn models.ConversationTurn
		var sourcesJSON string
		if err := rows.Scan(&turn.ID, &turn.Question, &turn.Answer, &sourcesJSON, &turn.CreatedAt); err != nil {
			return nil, err
		}
		if sourcesJSON != "" {
			if err := json.Unmarshal([]byte(sourcesJSON), &turn.Sources); err != nil {
				return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
			}
		}
		turns = append(turns, &turn)
	}
	return turns, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
