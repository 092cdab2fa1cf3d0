package source

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// TextLoader handles plain text markup files.
type TextLoader struct{}

func (l *TextLoader) Load(r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filename, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("read %s: input is not valid UTF-8", filename)
	}
	s := strings.TrimPrefix(string(data), "\uFEFF")
	return normalizeNewlines(s), nil
}
