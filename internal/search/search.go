// Package search answers ranked queries over library nodes. Meilisearch is
// used when configured and reachable; otherwise queries run against the
// in-memory tree.
package search

import "lexshelf/api/internal/library"

// Result is a single search hit returned to the caller.
type Result struct {
	Kind       library.Kind `json:"kind"`
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Snippet    string       `json:"snippet"`
	CategoryID string       `json:"categoryId"`
}

// Query describes a search request.
type Query struct {
	Text       string
	Kind       library.Kind // empty = articles and sections
	CategoryID string
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// NodeRecord is the data we index for an article or section.
type NodeRecord struct {
	ID         string       `json:"id"`
	Kind       library.Kind `json:"kind"`
	Name       string       `json:"name"`
	Content    string       `json:"content"`
	CategoryID string       `json:"categoryId"`
	ParentID   string       `json:"parentId"`
}

// Records flattens the searchable nodes of doc. Content is indexed as plain
// text.
func Records(doc *library.Document) []NodeRecord {
	records := make([]NodeRecord, 0)
	for _, category := range doc.Categories {
		for _, article := range category.Articles {
			records = append(records, NodeRecord{
				ID:         article.ID,
				Kind:       library.KindArticle,
				Name:       article.Name,
				Content:    library.StripTags(article.Content),
				CategoryID: category.ID,
				ParentID:   category.ID,
			})
			for _, section := range article.Sections {
				records = append(records, NodeRecord{
					ID:         section.ID,
					Kind:       library.KindSection,
					Name:       section.Name,
					Content:    library.StripTags(section.Content),
					CategoryID: category.ID,
					ParentID:   article.ID,
				})
			}
		}
	}
	return records
}
