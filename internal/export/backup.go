package export

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"lexshelf/api/internal/blob"
)

// FullBackup bundles the tree, every stored blob and the submission inbox.
type FullBackup struct {
	Meta      WireDocument `json:"meta"`
	Files     []BackupFile `json:"files"`
	Uploads   []WireUpload `json:"uploads"`
	Timestamp int64        `json:"timestamp"`
}

type BackupFile struct {
	ID   string `json:"id"`
	Data string `json:"data"`
	Type string `json:"type"`
}

// BlobSource is the read side of a blob store.
type BlobSource interface {
	List(ctx context.Context) ([]string, error)
	Get(ctx context.Context, id string) (blob.Object, error)
}

// BuildFullBackup reads every blob in blobs and base64-encodes it next to
// the exported tree. A blob that disappears between List and Get is skipped.
func BuildFullBackup(ctx context.Context, meta WireDocument, blobs BlobSource, now time.Time) (FullBackup, error) {
	ids, err := blobs.List(ctx)
	if err != nil {
		return FullBackup{}, fmt.Errorf("list blobs: %w", err)
	}
	files := make([]BackupFile, 0, len(ids))
	for _, id := range ids {
		obj, err := blobs.Get(ctx, id)
		if errors.Is(err, blob.ErrNotFound) {
			continue
		}
		if err != nil {
			return FullBackup{}, fmt.Errorf("read blob %s: %w", id, err)
		}
		files = append(files, BackupFile{
			ID:   id,
			Data: base64.StdEncoding.EncodeToString(obj.Data),
			Type: obj.MimeType,
		})
	}
	uploads := meta.Uploads
	if uploads == nil {
		uploads = []WireUpload{}
	}
	return FullBackup{
		Meta:      meta,
		Files:     files,
		Uploads:   uploads,
		Timestamp: now.UnixMilli(),
	}, nil
}
