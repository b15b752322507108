package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"lexshelf/api/internal/blob"
	"lexshelf/api/internal/events"
	"lexshelf/api/internal/library"
	"lexshelf/api/internal/util"
)

const anonymousVisitor = "Anonymous visitor"

// FileUpload is one file received from a client.
type FileUpload struct {
	Name     string
	MimeType string
	Data     []byte
}

// AttachResult reports the outcome for one file of a batch.
type AttachResult struct {
	Name  string                 `json:"name"`
	Ref   *library.AttachmentRef `json:"ref,omitempty"`
	Error string                 `json:"error,omitempty"`

	err error
}

// Attach stores file as a new blob and appends its ref to nodeID. A blob
// written before a failed flush is not removed.
func (s *Service) Attach(ctx context.Context, nodeID string, file FileUpload) (library.AttachmentRef, error) {
	results, err := s.AttachMany(ctx, nodeID, []FileUpload{file})
	if err != nil {
		return library.AttachmentRef{}, err
	}
	if results[0].err != nil {
		return library.AttachmentRef{}, results[0].err
	}
	return *results[0].Ref, nil
}

// AttachMany stores each file independently and flushes once at the end.
// A file that fails does not stop the others.
func (s *Service) AttachMany(ctx context.Context, nodeID string, files []FileUpload) ([]AttachResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files", library.ErrInvalidInput)
	}

	s.mu.Lock()
	node, err := s.lib.Find(nodeID)
	if err == nil && node.Kind == library.KindCategory {
		err = fmt.Errorf("%w: categories do not hold attachments", library.ErrInvalidInput)
	}
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	results := make([]AttachResult, 0, len(files))
	stored := 0
	for _, file := range files {
		ref, err := s.storeBlob(ctx, "f", file)
		if err == nil {
			err = s.lib.AppendAttachment(nodeID, ref)
		}
		if err != nil {
			s.logger.Warn("attachment skipped", zap.String("node_id", nodeID), zap.String("file", file.Name), zap.Error(err))
			results = append(results, AttachResult{Name: file.Name, Error: err.Error(), err: err})
			continue
		}
		stored++
		results = append(results, AttachResult{Name: file.Name, Ref: &ref})
	}
	if stored > 0 {
		err = s.flushLocked(ctx, "attach")
	}
	s.mu.Unlock()

	s.metrics.Mutation("attach", err)
	if err != nil {
		return results, err
	}
	if stored > 0 {
		s.bus.Publish(events.Event{Type: events.AttachmentAdded, NodeID: nodeID, Data: stored})
	}
	return results, nil
}

func (s *Service) storeBlob(ctx context.Context, prefix string, file FileUpload) (library.AttachmentRef, error) {
	name := strings.TrimSpace(file.Name)
	if name == "" {
		return library.AttachmentRef{}, fmt.Errorf("%w: file name is required", library.ErrInvalidInput)
	}
	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	ref := library.AttachmentRef{
		ID:       util.NewID(prefix),
		Name:     name,
		Size:     int64(len(file.Data)),
		MimeType: mimeType,
	}
	if err := s.blobs.Put(ctx, ref.ID, file.Data, mimeType); err != nil {
		return library.AttachmentRef{}, storageError("store blob", err)
	}
	s.metrics.BlobsStored.Inc()
	return ref, nil
}

// Detach removes the attachment at index from nodeID. The blob itself is
// kept until the next orphan collection.
func (s *Service) Detach(ctx context.Context, nodeID string, index int, confirm bool) (library.AttachmentRef, error) {
	if !confirm {
		return library.AttachmentRef{}, confirmationRequired(fmt.Sprintf("detach %d from %s", index, nodeID))
	}
	var removed library.AttachmentRef
	err := s.mutate(ctx, "detach", func(lib *library.Library) (events.Event, error) {
		var err error
		removed, err = lib.RemoveAttachment(nodeID, index)
		return events.Event{Type: events.AttachmentRemoved, NodeID: nodeID, Data: removed}, err
	})
	return removed, err
}

// Download returns the bytes of an attachment referenced by the tree.
// Submission files are only reachable through DownloadSubmissionFile.
func (s *Service) Download(ctx context.Context, blobID string) (blob.Object, library.AttachmentRef, error) {
	var (
		ref   library.AttachmentRef
		found bool
	)
	s.View(func(doc *library.Document) {
		library.New(doc).Walk(func(n library.Node) bool {
			for _, r := range n.Attachments() {
				if r.ID == blobID {
					ref, found = r, true
					return false
				}
			}
			return true
		})
	})
	if !found {
		return blob.Object{}, library.AttachmentRef{}, fmt.Errorf("%w: attachment %s", library.ErrNotFound, blobID)
	}
	obj, err := s.getBlob(ctx, blobID)
	return obj, ref, err
}

func (s *Service) getBlob(ctx context.Context, id string) (blob.Object, error) {
	obj, err := s.blobs.Get(ctx, id)
	if errors.Is(err, blob.ErrNotFound) {
		return blob.Object{}, fmt.Errorf("%w: blob %s", library.ErrNotFound, id)
	}
	if err != nil {
		return blob.Object{}, storageError("read blob", err)
	}
	return obj, nil
}

// SubmissionInput is a visitor message with optional files.
type SubmissionInput struct {
	Name    string
	Message string
	Files   []FileUpload
}

// Submit stores a visitor message. Either a message or at least one file is
// required. Files that fail to store are dropped from the record.
func (s *Service) Submit(ctx context.Context, input SubmissionInput) (library.Submission, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" && len(input.Files) == 0 {
		return library.Submission{}, fmt.Errorf("%w: a message or at least one file is required", library.ErrInvalidInput)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = anonymousVisitor
	}

	// Held so a concurrent orphan collection cannot see the new blobs
	// before the record that references them.
	s.mu.Lock()
	rec := library.Submission{
		Name:        name,
		Message:     message,
		Files:       make([]library.AttachmentRef, 0, len(input.Files)),
		SubmittedAt: s.now().UTC(),
	}
	for _, file := range input.Files {
		ref, err := s.storeBlob(ctx, "u", file)
		if err != nil {
			s.logger.Warn("submission file skipped", zap.String("file", file.Name), zap.Error(err))
			continue
		}
		rec.Files = append(rec.Files, ref)
	}
	id, err := s.store.AddSubmission(ctx, rec)
	s.mu.Unlock()

	if err != nil {
		s.metrics.Mutation("submit", err)
		return library.Submission{}, storageError("save submission", err)
	}
	rec.ID = id
	s.metrics.Mutation("submit", nil)
	s.metrics.Submissions.Inc()
	s.bus.Publish(events.Event{Type: events.SubmissionReceived, Data: rec})
	return rec, nil
}

// ListSubmissions returns the inbox newest first.
func (s *Service) ListSubmissions(ctx context.Context) ([]library.Submission, error) {
	subs, err := s.store.ListSubmissions(ctx)
	if err != nil {
		return nil, storageError("list submissions", err)
	}
	if subs == nil {
		subs = []library.Submission{}
	}
	return subs, nil
}

func (s *Service) DownloadSubmissionFile(ctx context.Context, submissionID int64, fileID string) (blob.Object, library.AttachmentRef, error) {
	subs, err := s.ListSubmissions(ctx)
	if err != nil {
		return blob.Object{}, library.AttachmentRef{}, err
	}
	for _, sub := range subs {
		if sub.ID != submissionID {
			continue
		}
		for _, ref := range sub.Files {
			if ref.ID == fileID {
				obj, err := s.getBlob(ctx, fileID)
				return obj, ref, err
			}
		}
	}
	return blob.Object{}, library.AttachmentRef{}, fmt.Errorf("%w: file %s of submission %d", library.ErrNotFound, fileID, submissionID)
}

// ClearSubmissions empties the inbox. Their files become orphans.
func (s *Service) ClearSubmissions(ctx context.Context, confirm bool) (int64, error) {
	if !confirm {
		return 0, confirmationRequired("clear submissions")
	}
	s.mu.Lock()
	n, err := s.store.ClearSubmissions(ctx)
	s.mu.Unlock()
	s.metrics.Mutation("clear_submissions", err)
	if err != nil {
		return 0, storageError("clear submissions", err)
	}
	s.bus.Publish(events.Event{Type: events.SubmissionsCleared, Data: n})
	return n, nil
}

// GCReport summarizes one orphan collection pass.
type GCReport struct {
	Scanned    int      `json:"scanned"`
	Referenced int      `json:"referenced"`
	Deleted    int      `json:"deleted"`
	Failed     []string `json:"failed"`
}

// CollectOrphanBlobs deletes every blob that neither the tree, a
// submission nor a recorded snapshot references.
func (s *Service) CollectOrphanBlobs(ctx context.Context) (GCReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := make(map[string]struct{})
	for _, ref := range s.lib.AttachmentRefs() {
		live[ref.ID] = struct{}{}
	}
	subs, err := s.store.ListSubmissions(ctx)
	if err != nil {
		return GCReport{}, storageError("list submissions", err)
	}
	for _, sub := range subs {
		for _, ref := range sub.Files {
			live[ref.ID] = struct{}{}
		}
	}
	if err := s.historyRefs(live); err != nil {
		return GCReport{}, fmt.Errorf("collect orphan blobs: %w", err)
	}

	ids, err := s.blobs.List(ctx)
	if err != nil {
		return GCReport{}, storageError("list blobs", err)
	}
	report := GCReport{Scanned: len(ids), Failed: []string{}}
	for _, id := range ids {
		if _, ok := live[id]; ok {
			report.Referenced++
			continue
		}
		if err := s.blobs.Delete(ctx, id); err != nil && !errors.Is(err, blob.ErrNotFound) {
			s.logger.Warn("orphan blob not deleted", zap.String("blob_id", id), zap.Error(err))
			report.Failed = append(report.Failed, id)
			continue
		}
		report.Deleted++
	}
	s.metrics.BlobsCollected.Add(float64(report.Deleted))
	s.logger.Info("orphan blobs collected",
		zap.Int("scanned", report.Scanned),
		zap.Int("deleted", report.Deleted),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

// historyRefs adds every attachment recorded in snapshot history to live so
// that restoring a snapshot never brings back a dangling ref.
func (s *Service) historyRefs(live map[string]struct{}) error {
	if s.history == nil {
		return nil
	}
	commits, err := s.history.History(0)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	for _, commit := range commits {
		doc, _, err := s.history.Get(commit.Hash)
		if err != nil {
			return fmt.Errorf("read snapshot %s: %w", commit.Hash, err)
		}
		for _, ref := range library.New(&doc).AttachmentRefs() {
			live[ref.ID] = struct{}{}
		}
	}
	return nil
}
