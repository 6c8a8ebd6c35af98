// Package extract turns uploaded files into plain text for chunking. The
// pipeline never parses file formats itself; this is the ingestion
// collaborator it delegates to.
package extract

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat indicates an upload with a file type no extractor
// handles.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ErrNoText indicates a file that parsed but contained no extractable text.
var ErrNoText = errors.New("document contains no extractable text")

// Text extracts plain text from the named upload based on its extension.
// Supported: .txt, .md, .markdown, .pdf.
func Text(filename string, r io.Reader) (string, error) {
	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		var data []byte
		data, err = io.ReadAll(r)
		text = string(data)
	case ".md", ".markdown":
		text, err = markdownText(r)
	case ".pdf":
		text, err = pdfText(r)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filename, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", filename, ErrNoText)
	}
	return text, nil
}
