package app

import (
	"context"

	"lexshelf/api/internal/events"
	"lexshelf/api/internal/library"
	"lexshelf/api/internal/search"
)

// NodeView is a single node with the context a detail page needs.
type NodeView struct {
	Kind        library.Kind            `json:"kind"`
	ID          string                  `json:"id"`
	ParentID    string                  `json:"parentId,omitempty"`
	ParentName  string                  `json:"parentName,omitempty"`
	CategoryID  string                  `json:"categoryId"`
	Name        string                  `json:"name"`
	Icon        string                  `json:"icon,omitempty"`
	Color       string                  `json:"color,omitempty"`
	Content     string                  `json:"content"`
	Attachments []library.AttachmentRef `json:"attachments"`
	Children    []ChildRef              `json:"children"`
}

type ChildRef struct {
	Kind library.Kind `json:"kind"`
	ID   string       `json:"id"`
	Name string       `json:"name"`
}

type BrowseResult struct {
	Query      string             `json:"query"`
	Categories []library.Category `json:"categories"`
}

// Browse returns the category list reduced to the nodes visible for query.
func (s *Service) Browse(query string) BrowseResult {
	doc := s.snapshotDocument()
	visible := library.FilterVisible(query, &doc)
	return BrowseResult{Query: query, Categories: library.Prune(&doc, visible)}
}

func (s *Service) Search(q search.Query) search.Response {
	resp := s.search.Search(q)
	if resp.Backend != "" {
		s.metrics.SearchQueries.WithLabelValues(resp.Backend).Inc()
	}
	return resp
}

func (s *Service) GetNode(id string) (NodeView, error) {
	doc := s.snapshotDocument()
	lib := library.New(&doc)
	node, err := lib.Find(id)
	if err != nil {
		return NodeView{}, err
	}

	view := NodeView{
		Kind:        node.Kind,
		ID:          node.ID,
		ParentID:    node.ParentID,
		Name:        node.Name(),
		Content:     node.Content(),
		Attachments: nonNilRefs(node.Attachments()),
		Children:    []ChildRef{},
	}
	if node.ParentID != "" {
		if parent, err := lib.Find(node.ParentID); err == nil {
			view.ParentName = parent.Name()
		}
	}
	if category, ok := categoryOf(lib, node); ok {
		view.CategoryID = category.ID
		view.Color = category.Color
	}

	switch node.Kind {
	case library.KindCategory:
		view.Icon = node.Category.Icon
		for _, a := range node.Category.Articles {
			view.Children = append(view.Children, ChildRef{Kind: library.KindArticle, ID: a.ID, Name: a.Name})
		}
	case library.KindArticle:
		for _, sec := range node.Article.Sections {
			view.Children = append(view.Children, ChildRef{Kind: library.KindSection, ID: sec.ID, Name: sec.Name})
		}
	case library.KindSection:
	}
	return view, nil
}

// categoryOf walks up from node to its category.
func categoryOf(lib *library.Library, node library.Node) (*library.Category, bool) {
	for node.Kind != library.KindCategory {
		parent, err := lib.Find(node.ParentID)
		if err != nil {
			return nil, false
		}
		node = parent
	}
	return node.Category, true
}

func (s *Service) CreateCategory(ctx context.Context, name, icon, color string) (library.Category, error) {
	var created library.Category
	err := s.mutate(ctx, "create_category", func(lib *library.Library) (events.Event, error) {
		var err error
		created, err = lib.CreateCategory(name, icon, color)
		return events.Event{Type: events.TreeChanged, NodeID: created.ID}, err
	})
	return created, err
}

func (s *Service) CreateArticle(ctx context.Context, categoryID, name, content string) (library.Article, error) {
	var created library.Article
	err := s.mutate(ctx, "create_article", func(lib *library.Library) (events.Event, error) {
		var err error
		created, err = lib.CreateArticle(categoryID, name, content)
		return events.Event{Type: events.TreeChanged, NodeID: created.ID}, err
	})
	return created, err
}

func (s *Service) CreateSection(ctx context.Context, articleID, name, content string) (library.Section, error) {
	var created library.Section
	err := s.mutate(ctx, "create_section", func(lib *library.Library) (events.Event, error) {
		var err error
		created, err = lib.CreateSection(articleID, name, content)
		return events.Event{Type: events.TreeChanged, NodeID: created.ID}, err
	})
	return created, err
}

func (s *Service) RenameCategory(ctx context.Context, id, name, icon string) (library.Category, error) {
	var updated library.Category
	err := s.mutate(ctx, "rename_category", func(lib *library.Library) (events.Event, error) {
		var err error
		updated, err = lib.RenameCategory(id, name, icon)
		return events.Event{Type: events.TreeChanged, NodeID: id}, err
	})
	return updated, err
}

// UpdateContent edits an article or section and returns its new view.
func (s *Service) UpdateContent(ctx context.Context, id, name, content string) (NodeView, error) {
	err := s.mutate(ctx, "update_content", func(lib *library.Library) (events.Event, error) {
		_, err := lib.UpdateContent(id, name, content)
		return events.Event{Type: events.TreeChanged, NodeID: id}, err
	})
	if err != nil {
		return NodeView{}, err
	}
	return s.GetNode(id)
}

// DeleteNode removes id and everything below it. Attachment blobs are left
// for CollectOrphanBlobs.
func (s *Service) DeleteNode(ctx context.Context, id, parentID string, confirm bool) (library.Removed, error) {
	if !confirm {
		return library.Removed{}, confirmationRequired("delete " + id)
	}
	var removed library.Removed
	err := s.mutate(ctx, "delete_node", func(lib *library.Library) (events.Event, error) {
		var err error
		removed, err = lib.DeleteNode(id, parentID)
		return events.Event{Type: events.NodeDeleted, NodeID: id, Data: removed}, err
	})
	if removed.NodeIDs == nil {
		removed.NodeIDs = []string{}
	}
	removed.Attachments = nonNilRefs(removed.Attachments)
	return removed, err
}

func nonNilRefs(refs []library.AttachmentRef) []library.AttachmentRef {
	if refs == nil {
		return []library.AttachmentRef{}
	}
	return refs
}
