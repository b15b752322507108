package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const docxMime = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// exportDOCX pipes html through pandoc.
func exportDOCX(ctx context.Context, html string, title string) (*Result, error) {
	if _, err := exec.LookPath("pandoc"); err != nil {
		return nil, fmt.Errorf("%w: pandoc not installed", ErrDOCXDependencyMissing)
	}

	ctx, cancel := context.WithTimeout(ctx, printTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "pandoc",
		"--from", "html",
		"--to", "docx",
		"--metadata", "title="+title,
		"--output", "-",
	)
	cmd.Stdin = strings.NewReader(html)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("pandoc exited %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("run pandoc: %w", err)
	}

	return &Result{
		Data:     out,
		Filename: sanitizeFilename(title) + ".docx",
		MimeType: docxMime,
	}, nil
}
