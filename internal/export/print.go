package export

import (
	"context"
	"fmt"
)

// Print renders data in the requested format.
func Print(ctx context.Context, data PrintData, format Format) (*Result, error) {
	html, err := RenderNodeHTML(data)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatHTML, "":
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(data.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return exportPDF(ctx, html, data.Title)
	case FormatDOCX:
		return exportDOCX(ctx, html, data.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
