// Package blob stores attachment bytes keyed by their attachment id.
package blob

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("blob not found")

const defaultMimeType = "application/octet-stream"

// Object is a stored blob.
type Object struct {
	ID       string
	Data     []byte
	MimeType string
}

// Store is the binary half of the persistence provider. List and Delete are
// only used by orphan collection.
type Store interface {
	Put(ctx context.Context, id string, data []byte, mimeType string) error
	Get(ctx context.Context, id string) (Object, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
}

func normalizeMime(mimeType string) string {
	if mimeType == "" {
		return defaultMimeType
	}
	return mimeType
}
