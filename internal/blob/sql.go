package blob

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLStore keeps blobs in the blobs table of the library database.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Put(ctx context.Context, id string, data []byte, mimeType string) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (id, mime_type, size, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET mime_type = excluded.mime_type, size = excluded.size, data = excluded.data
	`, id, normalizeMime(mimeType), int64(len(data)), data, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put blob %s: %w", id, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Object, error) {
	obj := Object{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT mime_type, data FROM blobs WHERE id = $1`, id).Scan(&obj.MimeType, &obj.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return Object{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Object{}, fmt.Errorf("get blob %s: %w", id, err)
	}
	return obj, nil
}

func (s *SQLStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM blobs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan blob id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blobs: %w", err)
	}
	return ids, nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete blob %s: %w", id, err)
	}
	return nil
}
