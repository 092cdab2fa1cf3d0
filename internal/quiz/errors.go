package quiz

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSection indicates a mandatory section was not found.
	ErrMissingSection = errors.New("missing required section")
	// ErrDuplicateSection indicates a single-occurrence section appeared more than once.
	ErrDuplicateSection = errors.New("duplicate section")
	// ErrUnconsumedText indicates text that no section claimed, such as a
	// start marker whose end marker is missing.
	ErrUnconsumedText = errors.New("unconsumed text")
	// ErrInputTooLarge indicates the input exceeded the configured bound.
	ErrInputTooLarge = errors.New("input too large")
	// ErrParseTimeout indicates decomposition was cancelled or ran past its deadline.
	ErrParseTimeout = errors.New("parse timeout")
)

// SectionError reports a child section with the wrong number of occurrences.
type SectionError struct {
	Parent  Kind
	Section Kind
	Count   int
}

func (e *SectionError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("%s has no %s section", e.Parent, e.Section)
	}
	return fmt.Sprintf("%s has %d %s sections, expected 1", e.Parent, e.Count, e.Section)
}

func (e *SectionError) Unwrap() error {
	if e.Count == 0 {
		return ErrMissingSection
	}
	return ErrDuplicateSection
}

// UnconsumedError reports leftover text inside a container section.
type UnconsumedError struct {
	Kind Kind
	Text string // leading excerpt of the leftover text
}

func (e *UnconsumedError) Error() string {
	return fmt.Sprintf("%s contains text outside any section: %q", e.Kind, e.Text)
}

func (e *UnconsumedError) Unwrap() error {
	return ErrUnconsumedText
}

const excerptLen = 60

func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= excerptLen {
		return s
	}
	return string(r[:excerptLen]) + "..."
}
