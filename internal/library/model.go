// Package library holds the content tree of the legal library: categories,
// their articles and the sections below them, plus the lookup, mutation and
// filtering rules that keep the tree consistent.
package library

import "time"

// Kind is the explicit discriminant carried by every node.
type Kind string

const (
	KindCategory Kind = "category"
	KindArticle  Kind = "article"
	KindSection  Kind = "section"
)

// AttachmentRef points at a blob owned by the blob store.
type AttachmentRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

type Section struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Content     string          `json:"content"`
	Attachments []AttachmentRef `json:"attachments"`
}

type Article struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Content     string          `json:"content"`
	Attachments []AttachmentRef `json:"attachments"`
	Sections    []Section       `json:"sections"`
}

type Category struct {
	ID       string    `json:"id"`
	Icon     string    `json:"icon"`
	Name     string    `json:"name"`
	Color    string    `json:"color,omitempty"`
	Articles []Article `json:"articles"`
}

// Credential is the salted PBKDF2 hash of the admin password, both fields
// base64 encoded.
type Credential struct {
	Hash string `json:"hash"`
	Salt string `json:"salt"`
}

// Submission is a visitor message left in the admin inbox.
type Submission struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Message     string          `json:"message"`
	Files       []AttachmentRef `json:"files"`
	SubmittedAt time.Time       `json:"submittedAt"`
}

// Document is the persisted tree. Submissions are kept in their own
// append-only collection and are not part of this value.
type Document struct {
	Credential *Credential `json:"credential"`
	Categories []Category  `json:"categories"`
}

// Node is the result of a lookup. Exactly one of Category, Article and
// Section is set, matching Kind. The pointers stay valid until the next
// structural mutation of the tree.
type Node struct {
	Kind     Kind
	ID       string
	ParentID string
	Category *Category
	Article  *Article
	Section  *Section
}

// Name returns the display name of the node.
func (n Node) Name() string {
	switch n.Kind {
	case KindCategory:
		return n.Category.Name
	case KindArticle:
		return n.Article.Name
	case KindSection:
		return n.Section.Name
	default:
		return ""
	}
}

// Content returns the rich-text body; categories have none.
func (n Node) Content() string {
	switch n.Kind {
	case KindArticle:
		return n.Article.Content
	case KindSection:
		return n.Section.Content
	default:
		return ""
	}
}

// Attachments returns the attachment list of an article or section.
func (n Node) Attachments() []AttachmentRef {
	switch n.Kind {
	case KindArticle:
		return n.Article.Attachments
	case KindSection:
		return n.Section.Attachments
	default:
		return nil
	}
}

func (n Node) attachmentList() (*[]AttachmentRef, bool) {
	switch n.Kind {
	case KindArticle:
		return &n.Article.Attachments, true
	case KindSection:
		return &n.Section.Attachments, true
	default:
		return nil, false
	}
}
