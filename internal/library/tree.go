package library

import (
	"fmt"
	"strings"

	"lexshelf/api/internal/util"
)

const defaultIcon = "❓"

// Library navigates and mutates a Document. It is not safe for concurrent
// use; the owner serializes access.
type Library struct {
	doc   *Document
	newID func(prefix string) string
}

// New wraps doc. A nil doc starts an empty tree.
func New(doc *Document) *Library {
	if doc == nil {
		doc = &Document{}
	}
	return &Library{doc: doc, newID: util.NewID}
}

// Document exposes the underlying tree for persistence.
func (l *Library) Document() *Document {
	return l.doc
}

// Replace swaps the whole tree, as an import does.
func (l *Library) Replace(doc Document) {
	*l.doc = doc
}

// Find performs a depth-first lookup across categories, articles and
// sections.
func (l *Library) Find(id string) (Node, error) {
	if id == "" {
		return Node{}, fmt.Errorf("%w: empty node id", ErrNotFound)
	}
	for ci := range l.doc.Categories {
		category := &l.doc.Categories[ci]
		if category.ID == id {
			return Node{Kind: KindCategory, ID: id, Category: category}, nil
		}
		for ai := range category.Articles {
			article := &category.Articles[ai]
			if article.ID == id {
				return Node{Kind: KindArticle, ID: id, ParentID: category.ID, Article: article}, nil
			}
			for si := range article.Sections {
				section := &article.Sections[si]
				if section.ID == id {
					return Node{Kind: KindSection, ID: id, ParentID: article.ID, Section: section}, nil
				}
			}
		}
	}
	return Node{}, fmt.Errorf("%w: node %s", ErrNotFound, id)
}

// Walk visits every node in document order. Returning false stops the walk.
func (l *Library) Walk(fn func(Node) bool) {
	walk(l.doc, fn)
}

func walk(doc *Document, fn func(Node) bool) {
	for ci := range doc.Categories {
		category := &doc.Categories[ci]
		if !fn(Node{Kind: KindCategory, ID: category.ID, Category: category}) {
			return
		}
		for ai := range category.Articles {
			article := &category.Articles[ai]
			if !fn(Node{Kind: KindArticle, ID: article.ID, ParentID: category.ID, Article: article}) {
				return
			}
			for si := range article.Sections {
				section := &article.Sections[si]
				if !fn(Node{Kind: KindSection, ID: section.ID, ParentID: article.ID, Section: section}) {
					return
				}
			}
		}
	}
}

func (l *Library) CreateCategory(name, icon, color string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}
	icon = strings.TrimSpace(icon)
	if icon == "" {
		icon = defaultIcon
	}
	category := Category{
		ID:       l.newID("t"),
		Icon:     icon,
		Name:     name,
		Color:    strings.TrimSpace(color),
		Articles: []Article{},
	}
	l.doc.Categories = append(l.doc.Categories, category)
	return category, nil
}

func (l *Library) CreateArticle(categoryID, name, content string) (Article, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Article{}, fmt.Errorf("%w: article name is required", ErrInvalidInput)
	}
	parent, err := l.Find(categoryID)
	if err != nil {
		return Article{}, err
	}
	if parent.Kind != KindCategory {
		return Article{}, fmt.Errorf("%w: %s is a %s, not a category", ErrNotFound, categoryID, parent.Kind)
	}
	article := Article{
		ID:          l.newID("i"),
		Name:        name,
		Content:     content,
		Attachments: []AttachmentRef{},
		Sections:    []Section{},
	}
	parent.Category.Articles = append(parent.Category.Articles, article)
	return article, nil
}

func (l *Library) CreateSection(articleID, name, content string) (Section, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Section{}, fmt.Errorf("%w: section name is required", ErrInvalidInput)
	}
	parent, err := l.Find(articleID)
	if err != nil {
		return Section{}, err
	}
	if parent.Kind != KindArticle {
		return Section{}, fmt.Errorf("%w: %s is a %s, not an article", ErrNotFound, articleID, parent.Kind)
	}
	section := Section{
		ID:          l.newID("c"),
		Name:        name,
		Content:     content,
		Attachments: []AttachmentRef{},
	}
	parent.Article.Sections = append(parent.Article.Sections, section)
	return section, nil
}

// RenameCategory updates name and icon in place. An empty icon keeps the
// current one.
func (l *Library) RenameCategory(id, name, icon string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}
	node, err := l.Find(id)
	if err != nil {
		return Category{}, err
	}
	if node.Kind != KindCategory {
		return Category{}, fmt.Errorf("%w: category %s", ErrNotFound, id)
	}
	node.Category.Name = name
	if icon = strings.TrimSpace(icon); icon != "" {
		node.Category.Icon = icon
	}
	return *node.Category, nil
}

// UpdateContent edits the name and body of an article or section.
func (l *Library) UpdateContent(id, name, content string) (Node, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Node{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	node, err := l.Find(id)
	if err != nil {
		return Node{}, err
	}
	switch node.Kind {
	case KindArticle:
		node.Article.Name = name
		node.Article.Content = content
	case KindSection:
		node.Section.Name = name
		node.Section.Content = content
	case KindCategory:
		return Node{}, fmt.Errorf("%w: %s is a category, use rename", ErrNotFound, id)
	}
	return node, nil
}

// Removed describes a subtree taken out of the document.
type Removed struct {
	Kind        Kind
	ID          string
	Name        string
	NodeIDs     []string
	Attachments []AttachmentRef
}

// DeleteNode removes id from the child list of parentID. Categories are
// removed from the top-level list and parentID is ignored. Children go with
// their parent; referenced blobs are left in the blob store.
func (l *Library) DeleteNode(id, parentID string) (Removed, error) {
	for ci := range l.doc.Categories {
		if l.doc.Categories[ci].ID != id {
			continue
		}
		removed := collectCategory(&l.doc.Categories[ci])
		l.doc.Categories = append(l.doc.Categories[:ci], l.doc.Categories[ci+1:]...)
		return removed, nil
	}

	parent, err := l.Find(parentID)
	if err != nil {
		return Removed{}, fmt.Errorf("delete %s: parent: %w", id, err)
	}
	switch parent.Kind {
	case KindCategory:
		articles := parent.Category.Articles
		for ai := range articles {
			if articles[ai].ID != id {
				continue
			}
			removed := collectArticle(&articles[ai])
			parent.Category.Articles = append(articles[:ai], articles[ai+1:]...)
			return removed, nil
		}
	case KindArticle:
		sections := parent.Article.Sections
		for si := range sections {
			if sections[si].ID != id {
				continue
			}
			removed := collectSection(&sections[si])
			parent.Article.Sections = append(sections[:si], sections[si+1:]...)
			return removed, nil
		}
	case KindSection:
	}
	return Removed{}, fmt.Errorf("%w: %s is not a child of %s", ErrNotFound, id, parentID)
}

func collectCategory(c *Category) Removed {
	removed := Removed{Kind: KindCategory, ID: c.ID, Name: c.Name, NodeIDs: []string{c.ID}}
	for ai := range c.Articles {
		child := collectArticle(&c.Articles[ai])
		removed.NodeIDs = append(removed.NodeIDs, child.NodeIDs...)
		removed.Attachments = append(removed.Attachments, child.Attachments...)
	}
	return removed
}

func collectArticle(a *Article) Removed {
	removed := Removed{Kind: KindArticle, ID: a.ID, Name: a.Name, NodeIDs: []string{a.ID}}
	removed.Attachments = append(removed.Attachments, a.Attachments...)
	for si := range a.Sections {
		child := collectSection(&a.Sections[si])
		removed.NodeIDs = append(removed.NodeIDs, child.NodeIDs...)
		removed.Attachments = append(removed.Attachments, child.Attachments...)
	}
	return removed
}

func collectSection(s *Section) Removed {
	return Removed{
		Kind:        KindSection,
		ID:          s.ID,
		Name:        s.Name,
		NodeIDs:     []string{s.ID},
		Attachments: append([]AttachmentRef(nil), s.Attachments...),
	}
}

// AppendAttachment adds ref to an article or section.
func (l *Library) AppendAttachment(nodeID string, ref AttachmentRef) error {
	node, err := l.Find(nodeID)
	if err != nil {
		return err
	}
	list, ok := node.attachmentList()
	if !ok {
		return fmt.Errorf("%w: %s nodes do not hold attachments", ErrInvalidInput, node.Kind)
	}
	*list = append(*list, ref)
	return nil
}

// RemoveAttachment drops the ref at index from the node's list.
func (l *Library) RemoveAttachment(nodeID string, index int) (AttachmentRef, error) {
	node, err := l.Find(nodeID)
	if err != nil {
		return AttachmentRef{}, err
	}
	list, ok := node.attachmentList()
	if !ok {
		return AttachmentRef{}, fmt.Errorf("%w: %s nodes do not hold attachments", ErrInvalidInput, node.Kind)
	}
	if index < 0 || index >= len(*list) {
		return AttachmentRef{}, fmt.Errorf("%w: attachment %d on %s", ErrNotFound, index, nodeID)
	}
	ref := (*list)[index]
	*list = append((*list)[:index], (*list)[index+1:]...)
	return ref, nil
}

// AttachmentRefs lists every attachment referenced anywhere in the tree.
func (l *Library) AttachmentRefs() []AttachmentRef {
	var refs []AttachmentRef
	l.Walk(func(n Node) bool {
		refs = append(refs, n.Attachments()...)
		return true
	})
	return refs
}

// Validate checks that every node carries an id and that ids are unique
// across the whole tree.
func Validate(doc *Document) error {
	seen := make(map[string]Kind)
	var err error
	walk(doc, func(n Node) bool {
		if strings.TrimSpace(n.ID) == "" {
			err = fmt.Errorf("%w: %s without id", ErrInvalidFormat, n.Kind)
			return false
		}
		if kind, dup := seen[n.ID]; dup {
			err = fmt.Errorf("%w: duplicate id %s (%s and %s)", ErrInvalidFormat, n.ID, kind, n.Kind)
			return false
		}
		seen[n.ID] = n.Kind
		return true
	})
	return err
}
