package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"lexshelf/api/internal/library"
	"lexshelf/api/internal/util"
)

// WireDocument is the portable tree format exchanged by export and import.
// Its keys are fixed for compatibility with existing backups.
type WireDocument struct {
	Password *library.Credential `json:"password"`
	Types    []WireCategory      `json:"types"`
	Uploads  []WireUpload        `json:"uploads"`
}

type WireCategory struct {
	ID    string        `json:"id"`
	Icon  string        `json:"icon"`
	Name  string        `json:"name"`
	Color string        `json:"color,omitempty"`
	Items []WireArticle `json:"items"`
}

type WireArticle struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Content  string        `json:"content"`
	Files    []WireFile    `json:"files"`
	Children []WireSection `json:"children"`
}

type WireSection struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Content  string            `json:"content"`
	Files    []WireFile        `json:"files"`
	Children []json.RawMessage `json:"children,omitempty"`
}

type WireFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

type WireUpload struct {
	ID      int64      `json:"id"`
	Name    string     `json:"name"`
	Message string     `json:"message"`
	Files   []WireFile `json:"files"`
	Date    string     `json:"date"`
}

// ExportTree converts the document and the submission inbox into the wire
// format. The credential is included as stored.
func ExportTree(doc library.Document, submissions []library.Submission) WireDocument {
	out := WireDocument{
		Password: doc.Credential,
		Types:    make([]WireCategory, 0, len(doc.Categories)),
		Uploads:  make([]WireUpload, 0, len(submissions)),
	}
	for _, category := range doc.Categories {
		wc := WireCategory{
			ID:    category.ID,
			Icon:  category.Icon,
			Name:  category.Name,
			Color: category.Color,
			Items: make([]WireArticle, 0, len(category.Articles)),
		}
		for _, article := range category.Articles {
			wa := WireArticle{
				ID:       article.ID,
				Name:     article.Name,
				Content:  article.Content,
				Files:    toWireFiles(article.Attachments),
				Children: make([]WireSection, 0, len(article.Sections)),
			}
			for _, section := range article.Sections {
				wa.Children = append(wa.Children, WireSection{
					ID:      section.ID,
					Name:    section.Name,
					Content: section.Content,
					Files:   toWireFiles(section.Attachments),
				})
			}
			wc.Items = append(wc.Items, wa)
		}
		out.Types = append(out.Types, wc)
	}
	for _, s := range submissions {
		out.Uploads = append(out.Uploads, WireUpload{
			ID:      s.ID,
			Name:    s.Name,
			Message: s.Message,
			Files:   toWireFiles(s.Files),
			Date:    s.SubmittedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}

// ImportTree parses an exported tree. The payload must be a JSON object whose
// "types" key holds an array. Missing node ids are assigned, duplicate ids
// are rejected, and the returned document replaces both the credential and
// the categories. Uploads in the payload are ignored.
func ImportTree(data []byte) (library.Document, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return library.Document{}, fmt.Errorf("%w: %v", library.ErrInvalidFormat, err)
	}
	rawTypes, ok := probe["types"]
	if !ok {
		return library.Document{}, fmt.Errorf("%w: missing \"types\"", library.ErrInvalidFormat)
	}
	if trimmed := bytes.TrimSpace(rawTypes); len(trimmed) == 0 || trimmed[0] != '[' {
		return library.Document{}, fmt.Errorf("%w: \"types\" must be an array", library.ErrInvalidFormat)
	}

	var wire WireDocument
	if err := json.Unmarshal(data, &wire); err != nil {
		return library.Document{}, fmt.Errorf("%w: %v", library.ErrInvalidFormat, err)
	}

	doc := library.Document{
		Credential: normalizeCredential(wire.Password),
		Categories: make([]library.Category, 0, len(wire.Types)),
	}
	for _, wc := range wire.Types {
		category := library.Category{
			ID:       orNewID(wc.ID, "t"),
			Icon:     wc.Icon,
			Name:     wc.Name,
			Color:    wc.Color,
			Articles: make([]library.Article, 0, len(wc.Items)),
		}
		for _, wa := range wc.Items {
			article := library.Article{
				ID:          orNewID(wa.ID, "i"),
				Name:        wa.Name,
				Content:     wa.Content,
				Attachments: fromWireFiles(wa.Files),
				Sections:    make([]library.Section, 0, len(wa.Children)),
			}
			for _, ws := range wa.Children {
				if len(ws.Children) > 0 {
					return library.Document{}, fmt.Errorf("%w: section %q has children", library.ErrInvalidFormat, ws.ID)
				}
				article.Sections = append(article.Sections, library.Section{
					ID:          orNewID(ws.ID, "c"),
					Name:        ws.Name,
					Content:     ws.Content,
					Attachments: fromWireFiles(ws.Files),
				})
			}
			category.Articles = append(category.Articles, article)
		}
		doc.Categories = append(doc.Categories, category)
	}

	if err := library.Validate(&doc); err != nil {
		return library.Document{}, err
	}
	return doc, nil
}

func normalizeCredential(c *library.Credential) *library.Credential {
	if c == nil || strings.TrimSpace(c.Hash) == "" || strings.TrimSpace(c.Salt) == "" {
		return nil
	}
	cp := *c
	return &cp
}

func orNewID(id, prefix string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	return util.NewID(prefix)
}

func toWireFiles(refs []library.AttachmentRef) []WireFile {
	files := make([]WireFile, 0, len(refs))
	for _, r := range refs {
		files = append(files, WireFile{ID: r.ID, Name: r.Name, Size: r.Size, Type: r.MimeType})
	}
	return files
}

func fromWireFiles(files []WireFile) []library.AttachmentRef {
	refs := make([]library.AttachmentRef, 0, len(files))
	for _, f := range files {
		refs = append(refs, library.AttachmentRef{ID: f.ID, Name: f.Name, Size: f.Size, MimeType: f.Type})
	}
	return refs
}
