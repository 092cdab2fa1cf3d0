package quiz

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// HTMLRenderer turns free text into an HTML fragment.
type HTMLRenderer interface {
	Render(text string) (string, error)
}

// Builder walks a decomposed tree and produces the quiz element tree.
type Builder struct {
	html    HTMLRenderer
	profile Profile
	strict  bool
	log     *slog.Logger
}

// NewBuilder creates a Builder. In strict mode leftover text inside a
// container section is an error; otherwise it is logged and dropped.
func NewBuilder(html HTMLRenderer, profile Profile, strict bool, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		html:    html,
		profile: profile,
		strict:  strict,
		log:     log,
	}
}

// Build renders root as a <quiz> element. The tree is built completely
// before anything is returned; any error discards it.
func (b *Builder) Build(root *Node) (*etree.Element, error) {
	if root == nil || root.Kind != KindRoot {
		return nil, fmt.Errorf("build: expected a %s node", KindRoot)
	}
	quiz := etree.NewElement("quiz")
	if err := b.checkResidual(root); err != nil {
		return nil, err
	}
	for i, item := range root.Get(KindItem) {
		elems, err := b.render(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		for _, el := range elems {
			quiz.AddChild(el)
		}
	}
	return quiz, nil
}

// render dispatches on the node kind. Container kinds validate their child
// counts before anything is dereferenced.
func (b *Builder) render(n *Node) ([]*etree.Element, error) {
	if err := b.checkChildren(n); err != nil {
		return nil, err
	}
	if err := b.checkResidual(n); err != nil {
		return nil, err
	}

	switch n.Kind {
	case KindItem:
		el, err := b.item(n)
		if err != nil {
			return nil, err
		}
		return []*etree.Element{el}, nil
	case KindTags:
		return []*etree.Element{b.tags(n)}, nil
	case KindQuestion:
		return b.members(n)
	case KindQuestionText:
		el, err := b.htmlText("questiontext", n)
		if err != nil {
			return nil, err
		}
		return []*etree.Element{el}, nil
	case KindAnswerRight:
		el, err := b.answer(n, b.profile.RightFraction)
		if err != nil {
			return nil, err
		}
		return []*etree.Element{el}, nil
	case KindAnswerWrong:
		el, err := b.answer(n, b.profile.WrongFraction)
		if err != nil {
			return nil, err
		}
		return []*etree.Element{el}, nil
	case KindFeedback:
		el, err := b.htmlText("generalfeedback", n)
		if err != nil {
			return nil, err
		}
		return []*etree.Element{el}, nil
	default:
		return nil, fmt.Errorf("render: unexpected %s node", n.Kind)
	}
}

// members renders every child of n in declared kind order, each kind in
// discovery order.
func (b *Builder) members(n *Node) ([]*etree.Element, error) {
	var out []*etree.Element
	for _, spec := range rules[n.Kind].children {
		for _, child := range n.Get(spec.kind) {
			elems, err := b.render(child)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", spec.kind, err)
			}
			out = append(out, elems...)
		}
	}
	return out, nil
}

func (b *Builder) checkChildren(n *Node) error {
	for _, spec := range rules[n.Kind].children {
		if spec.card != exactlyOne {
			continue
		}
		if count := len(n.Get(spec.kind)); count != 1 {
			return &SectionError{Parent: n.Kind, Section: spec.kind, Count: count}
		}
	}
	return nil
}

func (b *Builder) checkResidual(n *Node) error {
	if n.Kind.IsLeaf() || n.Text == "" {
		return nil
	}
	if b.strict {
		return &UnconsumedError{Kind: n.Kind, Text: excerpt(n.Text)}
	}
	b.log.Warn("dropping text outside any section", "section", n.Kind.String(), "text", excerpt(n.Text))
	return nil
}

func (b *Builder) item(n *Node) (*etree.Element, error) {
	p := b.profile
	q := etree.NewElement("question")
	q.CreateAttr("type", "multichoice")

	questionText := n.Get(KindQuestion)[0].Get(KindQuestionText)
	if len(questionText) != 1 {
		return nil, &SectionError{Parent: KindQuestion, Section: KindQuestionText, Count: len(questionText)}
	}
	q.CreateElement("name").CreateElement("text").SetText(DisplayName(questionText[0].Text, p.NameLength))

	q.CreateElement("defaultgrade").SetText(p.DefaultGrade)
	q.CreateElement("penalty").SetText(p.Penalty)
	q.CreateElement("hidden").SetText(p.Hidden)
	q.CreateElement("idnumber")
	q.CreateElement("single").SetText(strconv.FormatBool(p.Single))
	q.CreateElement("shuffleanswers").SetText(strconv.FormatBool(p.ShuffleAnswers))
	q.CreateElement("answernumbering").SetText(p.AnswerNumbering)
	q.CreateElement("showstandardinstruction").SetText(p.ShowStandardInstruction)

	outcome := func(tag, text string) {
		el := q.CreateElement(tag)
		el.CreateAttr("format", "html")
		el.CreateElement("text").SetText(text)
	}
	outcome("correctfeedback", p.CorrectFeedback)
	outcome("partiallycorrectfeedback", p.PartiallyCorrectFeedback)
	outcome("incorrectfeedback", p.IncorrectFeedback)
	q.CreateElement("shownumcorrect")

	elems, err := b.members(n)
	if err != nil {
		return nil, err
	}
	for _, el := range elems {
		q.AddChild(el)
	}
	return q, nil
}

func (b *Builder) tags(n *Node) *etree.Element {
	el := etree.NewElement("tags")
	for _, label := range strings.Split(n.Text, ";") {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		el.CreateElement("tag").CreateElement("text").SetText(label)
	}
	return el
}

func (b *Builder) htmlText(tag string, n *Node) (*etree.Element, error) {
	html, err := b.html.Render(n.Text)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", n.Kind, err)
	}
	el := etree.NewElement(tag)
	el.CreateAttr("format", "html")
	el.CreateElement("text").CreateCData(html)
	return el, nil
}

func (b *Builder) answer(n *Node, fraction int) (*etree.Element, error) {
	html, err := b.html.Render(n.Text)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", n.Kind, err)
	}
	el := etree.NewElement("answer")
	el.CreateAttr("fraction", strconv.Itoa(fraction))
	el.CreateAttr("format", "html")
	el.CreateElement("text").CreateCData(html)

	fb := el.CreateElement("feedback")
	fb.CreateAttr("format", "html")
	fb.CreateElement("text")
	return el, nil
}

var (
	whitespaceRun = regexp.MustCompile(`[\s\p{Z}]+`)
	emphasisChars = regexp.MustCompile("[*`_]")
)

// DisplayName derives a question name from its text: whitespace runs are
// collapsed, emphasis characters removed, and the result cut to limit
// characters with "..." appended when anything was cut.
func DisplayName(text string, limit int) string {
	s := whitespaceRun.ReplaceAllString(text, " ")
	s = strings.TrimSpace(emphasisChars.ReplaceAllString(s, ""))

	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit])) + "..."
}
