package search

import (
	"lexshelf/api/internal/library"
)

// Viewer runs fn with read access to the current document.
type Viewer interface {
	View(fn func(doc *library.Document))
}

// Local implements Searcher over the live tree with substring matching.
type Local struct {
	viewer Viewer
}

func NewLocal(viewer Viewer) *Local {
	return &Local{viewer: viewer}
}

// Healthy is always true; the tree is in memory.
func (l *Local) Healthy() bool {
	return true
}

func (l *Local) Search(q Query) ([]Result, int, error) {
	var matches []library.Match
	l.viewer.View(func(doc *library.Document) {
		matches = library.Search(q.Text, doc, 0)
	})

	filtered := make([]Result, 0, len(matches))
	for _, m := range matches {
		if q.Kind != "" && m.Kind != q.Kind {
			continue
		}
		if q.CategoryID != "" && m.CategoryID != q.CategoryID {
			continue
		}
		filtered = append(filtered, Result{
			Kind:       m.Kind,
			ID:         m.ID,
			Name:       m.Name,
			Snippet:    m.Snippet,
			CategoryID: m.CategoryID,
		})
	}

	total := len(filtered)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if q.Limit > 0 && offset+q.Limit < end {
		end = offset + q.Limit
	}
	return filtered[offset:end], total, nil
}
