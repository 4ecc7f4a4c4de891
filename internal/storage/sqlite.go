// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/vecbridge/internal/models"
)

// maxParams bounds the number of placeholders per IN (...) statement.
const maxParams = 500

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
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

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY,
		uid TEXT NOT NULL,
		text TEXT NOT NULL,
		tags TEXT,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_uid ON documents(uid);
	`
	_, err := db.Exec(schema)
	return err
}

// InsertDocuments stores documents under their host ids in one transaction.
func (s *SQLiteStorage) InsertDocuments(ctx context.Context, docs []*models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO documents (id, uid, text, tags, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, doc := range docs {
		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		doc.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, doc.ID, doc.UID, doc.Text, doc.Tags, string(metadataJSON), doc.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetDocuments returns the documents for ids, keyed by id. Missing ids are absent from the map.
func (s *SQLiteStorage) GetDocuments(ctx context.Context, ids []int64) (map[int64]*models.Document, error) {
	docs := make(map[int64]*models.Document, len(ids))
	for _, chunk := range chunkIDs(ids) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, uid, text, tags, metadata, created_at
			 FROM documents WHERE id IN (`+placeholders(len(chunk))+`)`,
			int64Args(chunk)...,
		)
		if err != nil {
			return nil, err
		}
		err = scanDocuments(rows, func(doc *models.Document) { docs[doc.ID] = doc })
		if err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// ListDocuments returns documents ordered by id with offset and limit.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, uid, text, tags, metadata, created_at
		 FROM documents ORDER BY id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	var docs []*models.Document
	err = scanDocuments(rows, func(doc *models.Document) { docs = append(docs, doc) })
	return docs, err
}

func scanDocuments(rows *sql.Rows, fn func(*models.Document)) error {
	defer rows.Close()
	for rows.Next() {
		var doc models.Document
		var tags, metadataJSON sql.NullString
		if err := rows.Scan(&doc.ID, &doc.UID, &doc.Text, &tags, &metadataJSON, &doc.CreatedAt); err != nil {
			return err
		}
		doc.Tags = tags.String
		if metadataJSON.String != "" && metadataJSON.String != "null" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata); err != nil {
				return fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		fn(&doc)
	}
	return rows.Err()
}

// IDsByUID returns the host ids stored under any of uids, in ascending order.
func (s *SQLiteStorage) IDsByUID(ctx context.Context, uids []string) ([]int64, error) {
	var ids []int64
	for start := 0; start < len(uids); start += maxParams {
		end := min(start+maxParams, len(uids))
		args := make([]any, 0, end-start)
		for _, uid := range uids[start:end] {
			args = append(args, uid)
		}
		rows, err := s.db.QueryContext(ctx,
			`SELECT id FROM documents WHERE uid IN (`+placeholders(len(args))+`) ORDER BY id`,
			args...,
		)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return ids, nil
}

// DeleteDocuments removes documents by host id. Unknown ids are ignored.
func (s *SQLiteStorage) DeleteDocuments(ctx context.Context, ids []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, chunk := range chunkIDs(ids) {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE id IN (`+placeholders(len(chunk))+`)`,
			int64Args(chunk)...,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Reset removes every document.
func (s *SQLiteStorage) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents`)
	return err
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func chunkIDs(ids []int64) [][]int64 {
	var chunks [][]int64
	for start := 0; start < len(ids); start += maxParams {
		chunks = append(chunks, ids[start:min(start+maxParams, len(ids))])
	}
	return chunks
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
