package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"lexshelf/api/internal/library"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"My Document v1.2", "My-Document-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "document"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
		{"قانون العمل", "قانون-العمل"},
		{"  Tab\tSeparated ", "Tab-Separated"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func printNode() library.Node {
	article := &library.Article{
		ID:      "i1",
		Name:    "Chapter One",
		Content: "<p>This is the content.</p>",
		Attachments: []library.AttachmentRef{
			{ID: "f1", Name: "decree.pdf", Size: 2048, MimeType: "application/pdf"},
		},
	}
	return library.Node{Kind: library.KindArticle, ID: "i1", ParentID: "t1", Article: article}
}

func TestRenderNodeHTML(t *testing.T) {
	data := NewPrintData(printNode(), "Labor Law", "#d4af37", time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC))

	html, err := RenderNodeHTML(data)
	if err != nil {
		t.Fatalf("RenderNodeHTML() error = %v", err)
	}

	for _, want := range []string{"Chapter One", "Labor Law", "decree.pdf (2.0 KB)", "2026-01-02 03:04", "#d4af37"} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if strings.Contains(html, "&lt;p&gt;") {
		t.Error("HTML content was escaped - should be rendered as raw HTML")
	}
	if !strings.Contains(html, "<p>This is the content.</p>") {
		t.Error("HTML content should contain unescaped <p> tags")
	}
}

func TestPrintFormats(t *testing.T) {
	data := NewPrintData(printNode(), "", "", time.Now())

	res, err := Print(context.Background(), data, FormatHTML)
	if err != nil {
		t.Fatalf("Print(html) error = %v", err)
	}
	if res.Filename != "Chapter-One.html" || !strings.HasPrefix(res.MimeType, "text/html") {
		t.Fatalf("unexpected html result: %s %s", res.Filename, res.MimeType)
	}

	if _, err := Print(context.Background(), data, Format("odt")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestHumanSize(t *testing.T) {
	cases := map[int64]string{0: "0 B", 1023: "1023 B", 1024: "1.0 KB", 5 * 1024 * 1024: "5.0 MB"}
	for in, want := range cases {
		if got := humanSize(in); got != want {
			t.Errorf("humanSize(%d) = %q, want %q", in, got, want)
		}
	}
}
