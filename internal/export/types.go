// Package export converts the library to and from its portable JSON forms
// and renders single nodes for printing as HTML, PDF or DOCX.
package export

import (
	"errors"
)

// Format represents the print output format
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
	// ErrUnsupportedFormat is returned for an unknown print format.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)
