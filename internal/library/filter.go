package library

import "strings"

// FilterVisible returns the ids that a browse view shows for query.
//
// Only the empty query shows everything; a whitespace query is matched
// literally like any other. Otherwise categories are always shown as
// group headers, sections are shown when their name or content contains the
// query (case-insensitive), and articles are shown when they match or when
// one of their sections does, so a hit never loses its ancestor chain.
func FilterVisible(query string, doc *Document) map[string]bool {
	visible := make(map[string]bool)
	needle := strings.ToLower(query)
	for _, category := range doc.Categories {
		visible[category.ID] = true
		for _, article := range category.Articles {
			show := needle == "" || matches(needle, article.Name, article.Content)
			for _, section := range article.Sections {
				if needle == "" || matches(needle, section.Name, section.Content) {
					visible[section.ID] = true
					show = true
				}
			}
			if show {
				visible[article.ID] = true
			}
		}
	}
	return visible
}

func matches(needle, name, content string) bool {
	return strings.Contains(strings.ToLower(name), needle) ||
		strings.Contains(strings.ToLower(content), needle)
}

// Prune returns a copy of the categories keeping only visible nodes.
func Prune(doc *Document, visible map[string]bool) []Category {
	out := make([]Category, 0, len(doc.Categories))
	for _, category := range doc.Categories {
		if !visible[category.ID] {
			continue
		}
		kept := category
		kept.Articles = make([]Article, 0, len(category.Articles))
		for _, article := range category.Articles {
			if !visible[article.ID] {
				continue
			}
			a := article
			a.Sections = make([]Section, 0, len(article.Sections))
			for _, section := range article.Sections {
				if visible[section.ID] {
					a.Sections = append(a.Sections, section)
				}
			}
			kept.Articles = append(kept.Articles, a)
		}
		out = append(out, kept)
	}
	return out
}

// Match is a node whose own name or content contains the query.
type Match struct {
	Kind       Kind   `json:"kind"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	Snippet    string `json:"snippet"`
	CategoryID string `json:"categoryId"`
}

const snippetRadius = 60

// Search lists direct matches in document order. Category headers are not
// results.
func Search(query string, doc *Document, limit int) []Match {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}
	var out []Match
	add := func(m Match) bool {
		out = append(out, m)
		return limit <= 0 || len(out) < limit
	}
	for _, category := range doc.Categories {
		for _, article := range category.Articles {
			if matches(needle, article.Name, article.Content) {
				if !add(Match{Kind: KindArticle, ID: article.ID, Name: article.Name, Snippet: Snippet(article.Content, needle), CategoryID: category.ID}) {
					return out
				}
			}
			for _, section := range article.Sections {
				if matches(needle, section.Name, section.Content) {
					if !add(Match{Kind: KindSection, ID: section.ID, Name: section.Name, Snippet: Snippet(section.Content, needle), CategoryID: category.ID}) {
						return out
					}
				}
			}
		}
	}
	return out
}

// Snippet cuts a window of plain text around the first occurrence of needle.
func Snippet(content, needle string) string {
	text := []rune(StripTags(content))
	lower := []rune(strings.ToLower(string(text)))
	idx := indexRunes(lower, []rune(needle))
	if idx < 0 {
		if len(text) > 2*snippetRadius {
			return string(text[:2*snippetRadius]) + "…"
		}
		return string(text)
	}
	start := idx - snippetRadius
	if start < 0 {
		start = 0
	}
	end := idx + len([]rune(needle)) + snippetRadius
	if end > len(text) {
		end = len(text)
	}
	snippet := string(text[start:end])
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(text) {
		snippet += "…"
	}
	return snippet
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 {
		return 0
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// StripTags drops markup from rich-text content and collapses whitespace.
func StripTags(content string) string {
	var b strings.Builder
	inTag := false
	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
