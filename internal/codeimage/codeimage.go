// Package codeimage renders syntax-highlighted source code to PNG.
package codeimage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	padding    = 10
	lineHeight = 15
	tabWidth   = 4

	// Largest code block rendered, after tab expansion.
	MaxColumns = 240
	MaxLines   = 400
)

// ErrTooLarge is returned for code blocks wider than MaxColumns or longer
// than MaxLines.
var ErrTooLarge = errors.New("code block too large to render")

// dialects maps fence tags to lexer names. Tags not listed here are looked
// up in the chroma registry before falling back to C.
var dialects = map[string]string{
	"c":      "c",
	"d":      "d",
	"python": "python",
	"bash":   "bash",
}

const fallbackLexer = "c"

// Highlighter renders code with a chroma style.
type Highlighter struct {
	style *chroma.Style
	face  font.Face
}

// New creates a Highlighter using the named chroma style. Unknown style
// names resolve to chroma's fallback style.
func New(styleName string) *Highlighter {
	return &Highlighter{
		style: styles.Get(styleName),
		face:  basicfont.Face7x13,
	}
}

// Lexer resolves a fence dialect to a lexer.
func Lexer(dialect string) chroma.Lexer {
	dialect = strings.ToLower(strings.TrimSpace(dialect))
	if name, ok := dialects[dialect]; ok {
		if l := lexers.Get(name); l != nil {
			return l
		}
	}
	if dialect != "" {
		if l := lexers.Get(dialect); l != nil {
			return l
		}
	}
	if l := lexers.Get(fallbackLexer); l != nil {
		return l
	}
	return lexers.Fallback
}

type run struct {
	text string
	col  color.Color
}

// Highlight tokenises code for dialect and returns the PNG encoding of the
// rendered image.
func (h *Highlighter) Highlight(code, dialect string) ([]byte, error) {
	if lines, cols := measure(code); lines > MaxLines || cols > MaxColumns {
		return nil, fmt.Errorf("%w: %d lines of up to %d columns, limit is %d lines of %d columns",
			ErrTooLarge, lines, cols, MaxLines, MaxColumns)
	}

	lexer := chroma.Coalesce(Lexer(dialect))
	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return nil, fmt.Errorf("tokenise %s: %w", lexer.Config().Name, err)
	}

	bg := h.style.Get(chroma.Background)
	background := colour(bg.Background, color.White)
	foreground := colour(bg.Colour, color.Black)

	// Split the token stream into lines of coloured runs.
	lines := [][]run{nil}
	for _, tok := range it.Tokens() {
		col := colour(h.style.Get(tok.Type).Colour, foreground)
		parts := strings.Split(strings.ReplaceAll(tok.Value, "\t", strings.Repeat(" ", tabWidth)), "\n")
		for i, part := range parts {
			if i > 0 {
				lines = append(lines, nil)
			}
			if part != "" {
				lines[len(lines)-1] = append(lines[len(lines)-1], run{text: part, col: col})
			}
		}
	}
	// A trailing newline does not start a visible line.
	if len(lines) > 1 && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}

	advance := font.MeasureString(h.face, "0").Ceil()
	cols := 1
	for _, line := range lines {
		n := 0
		for _, r := range line {
			n += utf8.RuneCountInString(r.text)
		}
		cols = max(cols, n)
	}

	width := 2*padding + cols*advance
	height := 2*padding + len(lines)*lineHeight
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	ascent := h.face.Metrics().Ascent.Ceil()
	for i, line := range lines {
		d := &font.Drawer{
			Dst:  img,
			Face: h.face,
			Dot:  fixed.P(padding, padding+i*lineHeight+ascent),
		}
		for _, r := range line {
			d.Src = image.NewUniform(r.col)
			d.DrawString(r.text)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// measure counts the visible lines of code and its widest line in columns.
func measure(code string) (lines, cols int) {
	rest := strings.TrimSuffix(code, "\n")
	for {
		line, next, more := strings.Cut(rest, "\n")
		lines++
		cols = max(cols, utf8.RuneCountInString(line)+strings.Count(line, "\t")*(tabWidth-1))
		if !more {
			return lines, cols
		}
		rest = next
	}
}

func colour(c chroma.Colour, fallback color.Color) color.Color {
	if !c.IsSet() {
		return fallback
	}
	return color.RGBA{R: c.Red(), G: c.Green(), B: c.Blue(), A: 0xff}
}
