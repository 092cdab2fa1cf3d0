// Package source loads quiz markup from the supported input file formats.
package source

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Loader reads an input file and returns its quiz markup as text.
type Loader interface {
	Load(r io.Reader, filename string) (string, error)
}

// SupportedExtensions lists file extensions that can be converted.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".hrq":      true,
	".quiz":     true,
	".docx":     true,
	".pdf":      true,
}

// ForFile returns the appropriate loader for a filename. Files without an
// extension are read as plain text.
func ForFile(filename string, pdfFallback bool) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case "", ".txt", ".md", ".markdown", ".hrq", ".quiz":
		return &TextLoader{}, nil
	case ".docx":
		return &DOCXLoader{}, nil
	case ".pdf":
		return &PDFLoader{FallbackPdftotext: pdfFallback}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == "" || SupportedExtensions[ext]
}

// normalizeNewlines converts CRLF and lone CR line endings to LF so that
// line-anchored markers match.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
