// Package quiz decomposes quiz markup into a typed tree and builds the
// quiz-exchange XML element tree from it.
package quiz

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgallion1/hrquiz/internal/segment"
)

// Node is one part of a decomposed quiz document. A node is populated once
// during decomposition and is read-only afterwards.
type Node struct {
	Kind Kind

	// Raw is the text matched for this node: the trimmed inner text, or
	// the whole span including delimiters for full-match kinds.
	Raw string

	// Text is what is left of Raw after every child span was excised,
	// trimmed. For leaf kinds it equals Raw.
	Text string

	Children map[Kind][]*Node
}

// Get returns the children of kind k in discovery order.
func (n *Node) Get(k Kind) []*Node {
	if n == nil || n.Children == nil {
		return nil
	}
	return n.Children[k]
}

// Decompose parses input into a root node. Absent sections are not errors
// here; they surface when the tree is built. The context is checked between
// matcher calls and a cancelled context is reported as ErrParseTimeout.
func Decompose(ctx context.Context, input string) (*Node, error) {
	root, _, ok, err := decompose(ctx, KindRoot, input)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Node{Kind: KindRoot}, nil
	}
	return root, nil
}

// decompose matches kind's own delimiter pair against buf and then runs
// each declared child kind to exhaustion against the matched text. It
// reports false when kind does not occur in buf.
func decompose(ctx context.Context, kind Kind, buf string) (*Node, segment.Match, bool, error) {
	r := rules[kind]

	m, ok := segment.Find(buf, r.delim, r.mode)
	// An empty span consumes nothing, so it cannot advance the caller's loop.
	if !ok || m.Len() == 0 {
		return nil, segment.Match{}, false, nil
	}

	n := &Node{Kind: kind, Raw: m.Text}
	work := m.Text

	for _, spec := range r.children {
		if r.sequential {
			var err error
			if work, err = decomposeSequential(ctx, kind, spec.kind, work, n); err != nil {
				return nil, segment.Match{}, false, err
			}
			continue
		}

		for {
			if err := ctx.Err(); err != nil {
				return nil, segment.Match{}, false, fmt.Errorf("%w: decomposing %s: %w", ErrParseTimeout, kind, err)
			}

			child, cm, found, err := decompose(ctx, spec.kind, work)
			if err != nil {
				return nil, segment.Match{}, false, err
			}
			if !found {
				break
			}

			n.addChild(spec.kind, child, len(r.children))
			work = segment.Excise(work, cm)
		}
	}

	n.Text = strings.TrimSpace(work)
	return n, m, true, nil
}

// decomposeSequential runs child to exhaustion over work, searching only
// the text after the previous match. The text between matches is collected
// and returned as the excised remainder.
func decomposeSequential(ctx context.Context, parent, child Kind, work string, n *Node) (string, error) {
	var rest strings.Builder
	rest.Grow(len(work))

	for {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: decomposing %s: %w", ErrParseTimeout, parent, err)
		}

		c, cm, found, err := decompose(ctx, child, work)
		if err != nil {
			return "", err
		}
		if !found {
			break
		}

		n.addChild(child, c, len(rules[parent].children))
		rest.WriteString(work[:cm.Start])
		work = work[cm.End:]
	}

	rest.WriteString(work)
	return rest.String(), nil
}

func (n *Node) addChild(k Kind, c *Node, kinds int) {
	if n.Children == nil {
		n.Children = make(map[Kind][]*Node, kinds)
	}
	n.Children[k] = append(n.Children[k], c)
}
