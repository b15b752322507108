package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"lexshelf/api/internal/events"
	"lexshelf/api/internal/export"
	"lexshelf/api/internal/library"
	"lexshelf/api/internal/snapshot"
)

// ExportTree returns the tree and the inbox in the portable format.
func (s *Service) ExportTree(ctx context.Context) (export.WireDocument, error) {
	subs, err := s.ListSubmissions(ctx)
	if err != nil {
		return export.WireDocument{}, err
	}
	doc := s.snapshotDocument()
	return export.ExportTree(doc, subs), nil
}

// ImportSummary describes the tree that replaced the previous one.
type ImportSummary struct {
	Categories int  `json:"categories"`
	Articles   int  `json:"articles"`
	Sections   int  `json:"sections"`
	Seeded     bool `json:"seeded"`
	Password   bool `json:"password"`
}

// ImportTree overwrites the credential and every category with the content
// of data. Uploads in data are ignored and the inbox is left as is.
func (s *Service) ImportTree(ctx context.Context, data []byte) (ImportSummary, error) {
	doc, err := export.ImportTree(data)
	if err != nil {
		return ImportSummary{}, err
	}
	summary := ImportSummary{Seeded: doc.EnsureDefaults(), Password: doc.Credential != nil}
	for _, c := range doc.Categories {
		summary.Categories++
		for _, a := range c.Articles {
			summary.Articles++
			summary.Sections += len(a.Sections)
		}
	}

	err = s.mutate(ctx, "import", func(lib *library.Library) (events.Event, error) {
		lib.Replace(doc)
		return events.Event{Type: events.TreeImported, Data: summary}, nil
	})
	if err != nil {
		return ImportSummary{}, err
	}
	s.logger.Info("library imported",
		zap.Int("categories", summary.Categories),
		zap.Int("articles", summary.Articles),
		zap.Int("sections", summary.Sections),
	)
	return summary, nil
}

// ExportFullBackup bundles the exported tree with every stored blob.
func (s *Service) ExportFullBackup(ctx context.Context) (export.FullBackup, error) {
	meta, err := s.ExportTree(ctx)
	if err != nil {
		return export.FullBackup{}, err
	}
	backup, err := export.BuildFullBackup(ctx, meta, s.blobs, s.now())
	if err != nil {
		return export.FullBackup{}, storageError("build backup", err)
	}
	return backup, nil
}

var errHistoryDisabled = fmt.Errorf("%w: snapshot history is disabled", library.ErrNotFound)

func (s *Service) Snapshots(limit int) ([]snapshot.CommitInfo, error) {
	if s.history == nil {
		return nil, errHistoryDisabled
	}
	commits, err := s.history.History(limit)
	if err != nil {
		return nil, storageError("read history", err)
	}
	if commits == nil {
		commits = []snapshot.CommitInfo{}
	}
	return commits, nil
}

// SnapshotView is a past tree together with what changed since.
type SnapshotView struct {
	Commit     snapshot.CommitInfo `json:"commit"`
	Categories []library.Category  `json:"categories"`
	Changes    []snapshot.Change   `json:"changes"`
}

// Snapshot loads the tree at hash and diffs it against the live tree.
func (s *Service) Snapshot(hash string) (SnapshotView, error) {
	doc, info, err := s.loadSnapshot(hash)
	if err != nil {
		return SnapshotView{}, err
	}
	current := s.snapshotDocument()
	changes := snapshot.Diff(doc, current)
	if changes == nil {
		changes = []snapshot.Change{}
	}
	return SnapshotView{Commit: info, Categories: doc.Categories, Changes: changes}, nil
}

// RestoreSnapshot replaces the categories with those at hash. The current
// credential is kept because snapshots never store it.
func (s *Service) RestoreSnapshot(ctx context.Context, hash string, confirm bool) (snapshot.CommitInfo, error) {
	if !confirm {
		return snapshot.CommitInfo{}, confirmationRequired("restore " + hash)
	}
	doc, info, err := s.loadSnapshot(hash)
	if err != nil {
		return snapshot.CommitInfo{}, err
	}
	doc.EnsureDefaults()
	err = s.mutate(ctx, "restore_snapshot", func(lib *library.Library) (events.Event, error) {
		lib.Document().Categories = doc.Categories
		return events.Event{Type: events.TreeImported, Data: info.Hash}, nil
	})
	return info, err
}

func (s *Service) loadSnapshot(hash string) (library.Document, snapshot.CommitInfo, error) {
	if s.history == nil {
		return library.Document{}, snapshot.CommitInfo{}, errHistoryDisabled
	}
	doc, info, err := s.history.Get(hash)
	if err != nil {
		return library.Document{}, snapshot.CommitInfo{}, err
	}
	return doc, info, nil
}

// PrintNode renders an article, section or category for printing.
func (s *Service) PrintNode(ctx context.Context, id string, format export.Format) (*export.Result, error) {
	doc := s.snapshotDocument()
	lib := library.New(&doc)
	node, err := lib.Find(id)
	if err != nil {
		return nil, err
	}
	parentName := ""
	if node.ParentID != "" {
		if parent, err := lib.Find(node.ParentID); err == nil {
			parentName = parent.Name()
		}
	}
	accent := ""
	if category, ok := categoryOf(lib, node); ok {
		accent = category.Color
	}

	result, err := export.Print(ctx, export.NewPrintData(node, parentName, accent, s.now()), format)
	if err != nil {
		return nil, fmt.Errorf("print %s: %w", id, err)
	}
	return result, nil
}
