// Package markup converts quiz free text to HTML.
//
// Fenced code blocks never reach the Markdown converter. Each block is
// swapped for an opaque placeholder token first, the remaining text is
// converted with goldmark, and every placeholder in the resulting HTML is
// then replaced with an inline PNG rendering of the code.
package markup

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// CodeRenderer renders a code block to PNG bytes.
type CodeRenderer interface {
	Highlight(code, dialect string) ([]byte, error)
}

// Renderer converts free text to an HTML fragment.
type Renderer struct {
	md   goldmark.Markdown
	code CodeRenderer
}

func NewRenderer(code CodeRenderer) *Renderer {
	return &Renderer{
		md:   goldmark.New(goldmark.WithRendererOptions(gmhtml.WithUnsafe())),
		code: code,
	}
}

var fence = regexp.MustCompile("(?s)\\s*```(\\w*)\\s*(.*?)\\s*```")

// tokenPrefix starts every placeholder. It is extended until it does not
// occur in the text being rendered, and each token ends with a
// terminator so no token is a prefix of another.
const tokenPrefix = "hrqcode"

// Render converts text to HTML.
func (r *Renderer) Render(text string) (string, error) {
	prefix := tokenPrefix
	for strings.Contains(text, prefix) {
		prefix += "q"
	}

	images := make(map[string]string)
	var order []string
	var sb strings.Builder
	last := 0
	for i, loc := range fence.FindAllStringSubmatchIndex(text, -1) {
		dialect := strings.ToLower(text[loc[2]:loc[3]])
		code := text[loc[4]:loc[5]]

		png, err := r.code.Highlight(code, dialect)
		if err != nil {
			return "", fmt.Errorf("highlight code block %d: %w", i+1, err)
		}
		token := prefix + strconv.Itoa(i) + "z"
		images[token] = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
		order = append(order, token)

		sb.WriteString(text[last:loc[0]])
		sb.WriteString("\n\n" + token + "\n\n")
		last = loc[1]
	}
	sb.WriteString(text[last:])

	var out bytes.Buffer
	if err := r.md.Convert([]byte(sb.String()), &out); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	if len(images) == 0 {
		return out.String(), nil
	}
	return substitute(out.String(), order, images)
}

// substitute parses the HTML fragment and splits every text node that
// carries a placeholder into text and <img> nodes.
func substitute(fragment string, tokens []string, images map[string]string) (string, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return "", fmt.Errorf("parse html fragment: %w", err)
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}

	var texts []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			texts = append(texts, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(body)

	for _, n := range texts {
		splitText(n, tokens, images)
	}

	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("render html: %w", err)
		}
	}
	return buf.String(), nil
}

func splitText(n *html.Node, tokens []string, images map[string]string) {
	s := n.Data
	for {
		idx, tok := firstToken(s, tokens)
		if idx < 0 {
			break
		}
		if idx > 0 {
			n.Parent.InsertBefore(&html.Node{Type: html.TextNode, Data: s[:idx]}, n)
		}
		n.Parent.InsertBefore(&html.Node{
			Type:     html.ElementNode,
			Data:     "img",
			DataAtom: atom.Img,
			Attr:     []html.Attribute{{Key: "src", Val: images[tok]}},
		}, n)
		s = s[idx+len(tok):]
	}
	if s == "" {
		n.Parent.RemoveChild(n)
		return
	}
	n.Data = s
}

func firstToken(s string, tokens []string) (int, string) {
	best, tok := -1, ""
	for _, t := range tokens {
		if i := strings.Index(s, t); i >= 0 && (best < 0 || i < best) {
			best, tok = i, t
		}
	}
	return best, tok
}
