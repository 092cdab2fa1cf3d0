package segment

import (
	"strings"
	"testing"
	"time"
)

func TestFind_LazyStopsAtNearestEnd(t *testing.T) {
	d := NewDelimiter(`^%tags%$`, `^%~tags%$`, false)
	buf := "%tags%\na; b\n%~tags%\n%tags%\nc\n%~tags%\n"

	m, ok := Find(buf, d, Mode{})
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Text != "a; b" {
		t.Errorf("expected text %q, got %q", "a; b", m.Text)
	}
	if got := m.Span(buf); got != "%tags%\na; b\n%~tags%" {
		t.Errorf("expected span to stop at first end marker, got %q", got)
	}
}

func TestFind_GreedyRunsToLastEnd(t *testing.T) {
	d := NewDelimiter(`^<$`, `^>$`, false)
	buf := "<\none\n>\n<\ntwo\n>"

	m, ok := Find(buf, d, Mode{Greedy: true})
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Start != 0 || m.End != len(buf) {
		t.Errorf("expected span [0,%d), got [%d,%d)", len(buf), m.Start, m.End)
	}
	if !strings.Contains(m.Text, "one") || !strings.Contains(m.Text, "two") {
		t.Errorf("expected greedy text to cover both blocks, got %q", m.Text)
	}
}

func TestFind_EmptyPatternsGreedyCoverWholeBuffer(t *testing.T) {
	d := NewDelimiter(``, ``, false)
	buf := "  first\nsecond  \n"

	m, ok := Find(buf, d, Mode{Greedy: true})
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Len() != len(buf) {
		t.Errorf("expected whole buffer consumed, got %d of %d bytes", m.Len(), len(buf))
	}
	if m.Text != "first\nsecond" {
		t.Errorf("expected trimmed text, got %q", m.Text)
	}
}

func TestFind_FullReturnsDelimiters(t *testing.T) {
	d := NewDelimiter(`^%tags%$`, `^%~feedback%$`, false)
	buf := "junk\n%tags%\nx\n%~tags%\n%feedback%\ny\n%~feedback%\ntrailer"

	m, ok := Find(buf, d, Mode{Full: true})
	if !ok {
		t.Fatal("expected a match")
	}
	if !strings.HasPrefix(m.Text, "%tags%") || !strings.HasSuffix(m.Text, "%~feedback%") {
		t.Errorf("expected full span including delimiters, got %q", m.Text)
	}
	if m.Text != m.Span(buf) {
		t.Errorf("expected text to equal consumed span")
	}
}

func TestFind_LookaheadEndIsNotConsumed(t *testing.T) {
	d := NewDelimiter(`^\+`, `^[-+]|\z`, true)
	buf := "+right one\n-wrong\n+right two"

	m, ok := Find(buf, d, Mode{})
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Text != "right one" {
		t.Errorf("expected %q, got %q", "right one", m.Text)
	}
	rest := Excise(buf, m)
	if rest != "-wrong\n+right two" {
		t.Errorf("expected end marker to stay in buffer, got %q", rest)
	}

	m, ok = Find(rest, d, Mode{})
	if !ok {
		t.Fatal("expected a second match")
	}
	if m.Text != "right two" {
		t.Errorf("expected %q, got %q", "right two", m.Text)
	}
}

func TestFind_AnchorsBindToLineBoundaries(t *testing.T) {
	d := NewDelimiter(`^\+`, `^[-+]|\z`, true)
	// "1+1" has a plus that is not at the start of a line.
	buf := "What is 1+1?\n"

	if _, ok := Find(buf, d, Mode{}); ok {
		t.Error("expected no match for a mid-line marker")
	}
}

func TestFind_QuestionTextStopsBeforeFirstAnswer(t *testing.T) {
	d := NewDelimiter(`\A\s*`, `^[-+]|\z`, true)
	buf := "What is 1+1?\n+2\n-3"

	m, ok := Find(buf, d, Mode{})
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Text != "What is 1+1?" {
		t.Errorf("expected %q, got %q", "What is 1+1?", m.Text)
	}
	if got := Excise(buf, m); got != "+2\n-3" {
		t.Errorf("expected answers to remain, got %q", got)
	}
}

func TestFind_NoEndMarkerIsNoMatch(t *testing.T) {
	d := NewDelimiter(`^%feedback%$`, `^%~feedback%$`, false)
	if _, ok := Find("%feedback%\nnever closed\n", d, Mode{}); ok {
		t.Error("expected no match when the end marker is missing")
	}
}

func TestFind_NoStartMarkerIsNoMatch(t *testing.T) {
	d := NewDelimiter(`^%feedback%$`, `^%~feedback%$`, false)
	if _, ok := Find("nothing here\n%~feedback%\n", d, Mode{}); ok {
		t.Error("expected no match when the start marker is missing")
	}
}

func TestExcise_ConsumedSpanIsNotFoundAgain(t *testing.T) {
	d := NewDelimiter(`^%tags%$`, `^%~tags%$`, false)
	buf := "%tags%\na\n%~tags%\n"

	m, ok := Find(buf, d, Mode{})
	if !ok {
		t.Fatal("expected a match")
	}
	rest := Excise(buf, m)
	if _, ok := Find(rest, d, Mode{}); ok {
		t.Errorf("expected no match after excision, buffer is %q", rest)
	}
}

func TestExcise_RemovesOnlyTheMatchedOccurrence(t *testing.T) {
	// Two identical blocks: removal must be by offset, not by content.
	d := NewDelimiter(`^%tags%$`, `^%~tags%$`, false)
	block := "%tags%\nsame\n%~tags%"
	buf := block + "\nmiddle\n" + block

	m, ok := Find(buf, d, Mode{})
	if !ok {
		t.Fatal("expected a match")
	}
	rest := Excise(buf, m)
	if rest != "\nmiddle\n"+block {
		t.Errorf("expected only the first block removed, got %q", rest)
	}
}

func TestFind_ExhaustiveLoopYieldsEveryOccurrenceInOrder(t *testing.T) {
	d := NewDelimiter(`^-`, `^[-+]|\z`, true)
	buf := "-a\n-b\n-c\n-d"

	var got []string
	for {
		m, ok := Find(buf, d, Mode{})
		if !ok {
			break
		}
		got = append(got, m.Text)
		buf = Excise(buf, m)
	}

	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("expected %d matches, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("match %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestFind_EndAnchorIgnoresMidLineStartOffset(t *testing.T) {
	d := NewDelimiter(`x`, `^y`, false)
	buf := "axyb\ny"

	m, ok := Find(buf, d, Mode{})
	if !ok {
		t.Fatal("expected a match")
	}
	if m.InnerEnd != 5 {
		t.Errorf("expected end marker on the second line at 5, got %d", m.InnerEnd)
	}
	if m.Text != "yb" {
		t.Errorf("expected text %q, got %q", "yb", m.Text)
	}
}

func TestFind_SkipsEndMatchesBeforeStartOnSameLine(t *testing.T) {
	d := NewDelimiter(`b`, `a`, false)
	buf := "aaaabxxa"

	m, ok := Find(buf, d, Mode{})
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Start != 4 || m.End != 8 {
		t.Errorf("expected span [4,8), got [%d,%d)", m.Start, m.End)
	}
	if m.Text != "xx" {
		t.Errorf("expected text %q, got %q", "xx", m.Text)
	}
}

func TestFind_GreedyIgnoresEndMatchesBeforeStart(t *testing.T) {
	d := NewDelimiter(`<`, `>`, false)
	buf := ">>< a > b >"

	m, ok := Find(buf, d, Mode{Greedy: true})
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Start != 2 || m.End != len(buf) {
		t.Errorf("expected span [2,%d), got [%d,%d)", len(buf), m.Start, m.End)
	}
}

func TestFind_NearestEndOnLargeBufferIsFast(t *testing.T) {
	d := NewDelimiter(`^%tags%$`, `^%~feedback%$`, false)
	block := "%tags%\nx\n%~tags%\n%feedback%\ny\n%~feedback%\n"
	buf := strings.Repeat(block, 50000)

	start := time.Now()
	for i := 0; i < 1000; i++ {
		if _, ok := Find(buf, d, Mode{Full: true}); !ok {
			t.Fatal("expected a match")
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected lookups independent of buffer size, 1000 took %v", elapsed)
	}
}
