package quiz

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"
	"github.com/beevik/etree"
)

type stubHTML struct{}

func (stubHTML) Render(text string) (string, error) {
	return "<p>" + text + "</p>", nil
}

type failingHTML struct{}

func (failingHTML) Render(string) (string, error) {
	return "", errors.New("boom")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildXML(t *testing.T, input string, strict bool) (*xmlquery.Node, error) {
	t.Helper()
	root := mustDecompose(t, input)
	el, err := NewBuilder(stubHTML{}, DefaultProfile(), strict, quietLogger()).Build(root)
	if err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	doc.SetRoot(el)
	s, err := doc.WriteToString()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	parsed, err := xmlquery.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("parse emitted xml: %v\n%s", err, s)
	}
	return parsed, nil
}

func TestBuild_MinimalDocument(t *testing.T) {
	doc, err := buildXML(t, minimalItem, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	questions := xmlquery.Find(doc, "/quiz/question")
	if len(questions) != 1 {
		t.Fatalf("expected 1 question element, got %d", len(questions))
	}
	if got := questions[0].SelectAttr("type"); got != "multichoice" {
		t.Errorf("expected type %q, got %q", "multichoice", got)
	}

	var tags []string
	for _, n := range xmlquery.Find(doc, "//question/tags/tag/text") {
		tags = append(tags, n.InnerText())
	}
	if strings.Join(tags, ",") != "alpha,beta" {
		t.Errorf("expected tags [alpha beta], got %v", tags)
	}

	right := xmlquery.FindOne(doc, "//answer[@fraction='100']/text")
	if right == nil || !strings.Contains(right.InnerText(), "2") {
		t.Errorf("expected a fraction 100 answer containing %q", "2")
	}
	wrong := xmlquery.FindOne(doc, "//answer[@fraction='0']/text")
	if wrong == nil || !strings.Contains(wrong.InnerText(), "3") {
		t.Errorf("expected a fraction 0 answer containing %q", "3")
	}
	if n := len(xmlquery.Find(doc, "//answer")); n != 2 {
		t.Errorf("expected 2 answers, got %d", n)
	}

	body := xmlquery.FindOne(doc, "//questiontext[@format='html']/text")
	if body == nil || !strings.Contains(body.InnerText(), "What is 1+1?") {
		t.Errorf("expected question body to contain the question")
	}

	fb := xmlquery.FindOne(doc, "//generalfeedback/text")
	if fb == nil || !strings.Contains(fb.InnerText(), "General note") {
		t.Errorf("expected general feedback to contain %q", "General note")
	}

	name := xmlquery.FindOne(doc, "//question/name/text")
	if name == nil || name.InnerText() != "What is 1+1?" {
		t.Errorf("expected name %q", "What is 1+1?")
	}
}

func TestBuild_FixedDefaultsAndOrder(t *testing.T) {
	doc, err := buildXML(t, minimalItem, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"name", "defaultgrade", "penalty", "hidden", "idnumber", "single",
		"shuffleanswers", "answernumbering", "showstandardinstruction",
		"correctfeedback", "partiallycorrectfeedback", "incorrectfeedback",
		"shownumcorrect", "tags", "questiontext", "answer", "answer", "generalfeedback",
	}
	var got []string
	q := xmlquery.FindOne(doc, "/quiz/question")
	for c := q.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			got = append(got, c.Data)
		}
	}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("expected element order\n  %v\ngot\n  %v", want, got)
	}

	values := map[string]string{
		"defaultgrade":                  "1.000000",
		"penalty":                       "0.3333333",
		"single":                        "true",
		"shuffleanswers":                "true",
		"answernumbering":               "abc",
		"correctfeedback/text":          "Your answer is correct.",
		"partiallycorrectfeedback/text": "Your answer is partially correct.",
		"incorrectfeedback/text":        "Your answer is incorrect.",
	}
	for path, w := range values {
		n := xmlquery.FindOne(q, path)
		if n == nil {
			t.Errorf("%s: missing", path)
			continue
		}
		if n.InnerText() != w {
			t.Errorf("%s: expected %q, got %q", path, w, n.InnerText())
		}
	}

	if fb := xmlquery.FindOne(q, "answer/feedback[@format='html']/text"); fb == nil || fb.InnerText() != "" {
		t.Error("expected an empty per-answer feedback slot")
	}
}

func TestBuild_TwoItems(t *testing.T) {
	second := strings.Replace(minimalItem, "What is 1+1?", "Second question", 1)
	doc, err := buildXML(t, minimalItem+"\n"+second, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := xmlquery.Find(doc, "/quiz/question/name/text")
	if len(names) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(names))
	}
	if names[0].InnerText() != "What is 1+1?" || names[1].InnerText() != "Second question" {
		t.Errorf("expected source order, got %q then %q", names[0].InnerText(), names[1].InnerText())
	}
}

func TestBuild_EmptyTagLabelsSkipped(t *testing.T) {
	input := strings.Replace(minimalItem, "alpha; beta", " alpha ;; beta; ", 1)
	doc, err := buildXML(t, input, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(xmlquery.Find(doc, "//tag")); n != 2 {
		t.Errorf("expected 2 tags, got %d", n)
	}
}

func TestBuild_MissingQuestionSection(t *testing.T) {
	input := "%tags%\na\n%~tags%\n%feedback%\nF\n%~feedback%\n"
	_, err := buildXML(t, input, true)
	if !errors.Is(err, ErrMissingSection) {
		t.Fatalf("expected ErrMissingSection, got %v", err)
	}
	var se *SectionError
	if !errors.As(err, &se) || se.Section != KindQuestion {
		t.Errorf("expected a section error for the question, got %v", err)
	}
}

func TestBuild_MissingQuestionText(t *testing.T) {
	input := "%tags%\na\n%~tags%\n%question%\n+x\n%~question%\n%feedback%\nF\n%~feedback%\n"
	_, err := buildXML(t, input, true)
	if !errors.Is(err, ErrMissingSection) {
		t.Fatalf("expected ErrMissingSection, got %v", err)
	}
}

func TestBuild_FeedbackMissingBeforeNextItem(t *testing.T) {
	// The first item has no feedback, so its span runs into the second item.
	input := "%tags%\na\n%~tags%\n%question%\nQ1\n+x\n%~question%\n" + minimalItem
	_, err := buildXML(t, input, true)
	if !errors.Is(err, ErrDuplicateSection) {
		t.Fatalf("expected ErrDuplicateSection, got %v", err)
	}
}

func TestBuild_FeedbackMissingOnLastItem(t *testing.T) {
	input := "%tags%\na\n%~tags%\n%question%\nQ1\n+x\n%~question%\n"

	_, err := buildXML(t, input, true)
	if !errors.Is(err, ErrUnconsumedText) {
		t.Fatalf("expected ErrUnconsumedText in strict mode, got %v", err)
	}

	doc, err := buildXML(t, input, false)
	if err != nil {
		t.Fatalf("expected lenient mode to succeed, got %v", err)
	}
	if n := len(xmlquery.Find(doc, "//question")); n != 0 {
		t.Errorf("expected no questions in lenient mode, got %d", n)
	}
}

func TestBuild_RendererErrorPropagates(t *testing.T) {
	root := mustDecompose(t, minimalItem)
	_, err := NewBuilder(failingHTML{}, DefaultProfile(), true, quietLogger()).Build(root)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected renderer error, got %v", err)
	}
}

func TestBuild_RejectsNonRoot(t *testing.T) {
	_, err := NewBuilder(stubHTML{}, DefaultProfile(), true, quietLogger()).Build(&Node{Kind: KindItem})
	if err == nil {
		t.Fatal("expected an error for a non-root node")
	}
}

func TestBuild_ProfileFractions(t *testing.T) {
	p := DefaultProfile()
	p.WrongFraction = -50
	root := mustDecompose(t, minimalItem)
	el, err := NewBuilder(stubHTML{}, p, true, quietLogger()).Build(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if el.FindElement("//answer[@fraction='-50']") == nil {
		t.Error("expected the wrong answer to carry the profile fraction")
	}
}

func TestDisplayName(t *testing.T) {
	fifty := strings.Repeat("abcdefghij", 5)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"truncated", fifty, fifty[:35] + "..."},
		{"short", strings.Repeat("x", 20), strings.Repeat("x", 20)},
		{"exact limit", strings.Repeat("y", 35), strings.Repeat("y", 35)},
		{"whitespace collapsed", "What\n  is\tthis?", "What is this?"},
		{"unicode spaces collapsed", "a\u00a0\u00a0b\u2003c\u3000", "a b c"},
		{"emphasis stripped", "Is *this* `code` or _that_?", "Is this code or that?"},
		{"multibyte", strings.Repeat("é", 40), strings.Repeat("é", 35) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayName(tt.in, 35); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
