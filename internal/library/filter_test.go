package library

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func filterFixture() *Document {
	return &Document{Categories: []Category{
		{ID: "t1", Name: "Labor Law", Articles: []Article{
			{ID: "i1", Name: "Chapter One", Content: "<p>Employment contracts</p>", Sections: []Section{
				{ID: "c1", Name: "Article 1", Content: "Minimum WAGE rules"},
				{ID: "c2", Name: "Article 2", Content: "Leave"},
			}},
			{ID: "i2", Name: "Chapter Two", Content: "Unions"},
		}},
		{ID: "t2", Name: "Tax", Articles: []Article{
			{ID: "i3", Name: "Income", Content: "brackets"},
		}},
	}}
}

func TestFilterVisible(t *testing.T) {
	doc := filterFixture()

	cases := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty shows all", "", []string{"t1", "i1", "c1", "c2", "i2", "t2", "i3"}},
		{"section match keeps ancestors", "wage", []string{"t1", "t2", "i1", "c1"}},
		{"article match", "unions", []string{"t1", "t2", "i2"}},
		{"name match is case-insensitive", "INCOME", []string{"t1", "t2", "i3"}},
		{"no match keeps headers", "zzz", []string{"t1", "t2"}},
		{"whitespace is matched literally", " ", []string{"t1", "i1", "c1", "c2", "i2", "t2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FilterVisible(tc.query, doc)
			require.Len(t, got, len(tc.want))
			for _, id := range tc.want {
				require.True(t, got[id], "expected %s visible", id)
			}
		})
	}
}

func TestFilterVisibleAncestorClosure(t *testing.T) {
	doc := filterFixture()
	for _, q := range []string{"a", "rule", "chapter", "leave", "e"} {
		visible := FilterVisible(q, doc)
		walk(doc, func(n Node) bool {
			if n.Kind == KindSection && visible[n.ID] {
				require.True(t, visible[n.ParentID], "query %q: parent of %s hidden", q, n.ID)
			}
			if n.Kind == KindArticle {
				require.True(t, visible[n.ParentID])
			}
			return true
		})
	}
}

func TestPrune(t *testing.T) {
	doc := filterFixture()
	pruned := Prune(doc, FilterVisible("wage", doc))
	require.Len(t, pruned, 2)
	require.Len(t, pruned[0].Articles, 1)
	require.Equal(t, []Section{doc.Categories[0].Articles[0].Sections[0]}, pruned[0].Articles[0].Sections)
	require.Empty(t, pruned[1].Articles)
	// source untouched
	require.Len(t, doc.Categories[0].Articles, 2)
}

func TestSearch(t *testing.T) {
	doc := filterFixture()

	matches := Search("article", doc, 0)
	require.Len(t, matches, 2)
	require.Equal(t, "c1", matches[0].ID)
	require.Equal(t, KindSection, matches[0].Kind)
	require.Equal(t, "t1", matches[0].CategoryID)

	require.Len(t, Search("article", doc, 1), 1)
	require.Nil(t, Search("  ", doc, 0))

	hits := Search("contracts", doc, 0)
	require.Len(t, hits, 1)
	require.Equal(t, "Employment contracts", hits[0].Snippet)
}

func TestSnippetWindow(t *testing.T) {
	long := strings.Repeat("x", 100) + " needle " + strings.Repeat("y", 100)
	s := Snippet(long, "needle")
	require.True(t, strings.HasPrefix(s, "…"))
	require.True(t, strings.HasSuffix(s, "…"))
	require.Contains(t, s, "needle")

	require.Equal(t, "a b", StripTags("<p>a</p>\n<b>b</b>"))
}
