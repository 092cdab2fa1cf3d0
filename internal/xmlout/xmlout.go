// Package xmlout serializes an element tree as an indented UTF-8 XML document.
package xmlout

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/beevik/etree"
)

const indent = 2

// Document wraps root with an XML declaration and indents it.
func Document(root *etree.Element) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.SetRoot(root)
	doc.Indent(indent)
	return doc
}

// Marshal returns the serialized document for root.
func Marshal(root *etree.Element) ([]byte, error) {
	b, err := Document(root).WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize xml: %w", err)
	}
	return b, nil
}

// WriteFile serializes root to path. The document is written to a
// temporary file in the same directory and renamed into place, so path is
// either left untouched or holds the complete document.
func WriteFile(path string, root *etree.Element) error {
	data, err := Marshal(root)
	if err != nil {
		return err
	}
	return WriteBytes(path, data)
}

// WriteBytes atomically replaces path with data.
func WriteBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".hrquiz-*.xml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
