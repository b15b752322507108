package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lexshelf/api/internal/library"
)

// Store is the SQL persistence provider for the library document and the
// submission inbox. The same queries run on both dialects.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveDocument upserts the serialized value under key.
func (s *Store) SaveDocument(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(value), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save document %s: %w", key, err)
	}
	return nil
}

// LoadDocument returns the value stored under key and whether it exists.
func (s *Store) LoadDocument(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM documents WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load document %s: %w", key, err)
	}
	return []byte(value), true, nil
}

// AddSubmission appends rec and returns its assigned id.
func (s *Store) AddSubmission(ctx context.Context, rec library.Submission) (int64, error) {
	files := rec.Files
	if files == nil {
		files = []library.AttachmentRef{}
	}
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return 0, fmt.Errorf("marshal submission files: %w", err)
	}
	submittedAt := rec.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO submissions (name, message, files_json, submitted_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, rec.Name, rec.Message, string(filesJSON), submittedAt.UnixMilli()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert submission: %w", err)
	}
	return id, nil
}

// ListSubmissions returns every submission, newest first.
func (s *Store) ListSubmissions(ctx context.Context) ([]library.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, message, files_json, submitted_at
		FROM submissions
		ORDER BY submitted_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	items := make([]library.Submission, 0)
	for rows.Next() {
		var (
			item        library.Submission
			filesJSON   string
			submittedAt int64
		)
		if err := rows.Scan(&item.ID, &item.Name, &item.Message, &filesJSON, &submittedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if err := json.Unmarshal([]byte(filesJSON), &item.Files); err != nil {
			return nil, fmt.Errorf("decode submission %d files: %w", item.ID, err)
		}
		if item.Files == nil {
			item.Files = []library.AttachmentRef{}
		}
		item.SubmittedAt = time.UnixMilli(submittedAt).UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return items, nil
}

// ClearSubmissions removes every submission and reports how many there were.
func (s *Store) ClearSubmissions(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM submissions`)
	if err != nil {
		return 0, fmt.Errorf("clear submissions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear submissions: %w", err)
	}
	return n, nil
}
