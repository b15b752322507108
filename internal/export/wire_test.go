package export

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lexshelf/api/internal/library"
)

func sampleDocument() library.Document {
	return library.Document{
		Credential: &library.Credential{Hash: "aGFzaA==", Salt: "c2FsdA=="},
		Categories: []library.Category{{
			ID: "t1", Icon: "⚖️", Name: "Labor Law", Color: "#d4af37",
			Articles: []library.Article{{
				ID: "i1", Name: "Chapter One", Content: "<p>x</p>",
				Attachments: []library.AttachmentRef{{ID: "f1", Name: "a.pdf", Size: 10, MimeType: "application/pdf"}},
				Sections: []library.Section{{
					ID: "c1", Name: "Article 1", Content: "y", Attachments: []library.AttachmentRef{},
				}},
			}},
		}},
	}
}

func TestExportTreeWireKeys(t *testing.T) {
	submitted := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
	wire := ExportTree(sampleDocument(), []library.Submission{{
		ID: 7, Name: "Visitor", Message: "hello", SubmittedAt: submitted,
		Files: []library.AttachmentRef{{ID: "u1", Name: "scan.png", Size: 3, MimeType: "image/png"}},
	}})
	raw, err := json.Marshal(wire)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	require.Contains(t, generic, "password")
	require.Contains(t, generic, "types")
	require.Contains(t, generic, "uploads")

	category := generic["types"].([]any)[0].(map[string]any)
	article := category["items"].([]any)[0].(map[string]any)
	require.Equal(t, "application/pdf", article["files"].([]any)[0].(map[string]any)["type"])
	section := article["children"].([]any)[0].(map[string]any)
	require.NotContains(t, section, "children")

	upload := generic["uploads"].([]any)[0].(map[string]any)
	require.Equal(t, "2026-05-01T08:30:00Z", upload["date"])
}

func TestImportRestoresExport(t *testing.T) {
	doc := sampleDocument()
	raw, err := json.Marshal(ExportTree(doc, nil))
	require.NoError(t, err)

	got, err := ImportTree(raw)
	require.NoError(t, err)
	require.Equal(t, doc, got)
}

func TestImportTreeRejectsBadShape(t *testing.T) {
	cases := map[string]string{
		"not json":          `{`,
		"array root":        `[]`,
		"missing types":     `{"password":null}`,
		"types not array":   `{"types":{"id":"t1"}}`,
		"types null":        `{"types":null}`,
		"duplicate ids":     `{"types":[{"id":"t1","items":[{"id":"t1"}]}]}`,
		"nested section":    `{"types":[{"id":"t1","items":[{"id":"i1","children":[{"id":"c1","children":[{"id":"x"}]}]}]}]}`,
		"wrong field types": `{"types":[{"id":5}]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ImportTree([]byte(payload))
			require.True(t, errors.Is(err, library.ErrInvalidFormat), "got %v", err)
		})
	}
}

func TestImportTreeNormalizes(t *testing.T) {
	payload := `{"password":{"hash":"","salt":""},"types":[{"name":"No id","items":[{"name":"Item"}]}],"uploads":[{"name":"ignored"}]}`
	doc, err := ImportTree([]byte(payload))
	require.NoError(t, err)
	require.Nil(t, doc.Credential)
	require.True(t, strings.HasPrefix(doc.Categories[0].ID, "t"))
	require.True(t, strings.HasPrefix(doc.Categories[0].Articles[0].ID, "i"))
	require.NotNil(t, doc.Categories[0].Articles[0].Attachments)
	require.NotNil(t, doc.Categories[0].Articles[0].Sections)

	empty, err := ImportTree([]byte(`{"types":[]}`))
	require.NoError(t, err)
	require.Empty(t, empty.Categories)
}
