// Package segment locates delimited spans inside a text buffer.
//
// Patterns are compiled in multi-line mode, so ^ and $ bind to line
// boundaries and a span may cross any number of lines. Matching uses the
// RE2 engine from the standard regexp package, which runs in linear time
// regardless of input shape.
package segment

import (
	"regexp"
	"strings"
)

// Delimiter is a start/end pattern pair bounding a section of text.
type Delimiter struct {
	Start *regexp.Regexp
	End   *regexp.Regexp

	// EndLookahead makes the end pattern zero-width: it bounds the inner
	// text but is not part of the consumed span.
	EndLookahead bool
}

// NewDelimiter compiles a delimiter pair. Both patterns are compiled with
// the (?m) flag. An empty pattern matches the empty string at any offset.
func NewDelimiter(start, end string, endLookahead bool) Delimiter {
	return Delimiter{
		Start:        regexp.MustCompile("(?m)" + start),
		End:          regexp.MustCompile("(?m)" + end),
		EndLookahead: endLookahead,
	}
}

// Mode selects how a delimiter pair is applied.
type Mode struct {
	// Greedy extends the inner text to the last end match instead of the
	// nearest one.
	Greedy bool

	// Full reports the whole consumed span, delimiters included, as the
	// match text instead of the trimmed inner text.
	Full bool
}

// Match is a successful delimiter match. Offsets are byte offsets into the
// buffer that was searched.
type Match struct {
	Start int // start of the consumed span
	End   int // end of the consumed span (exclusive)

	InnerStart int
	InnerEnd   int

	// Text is the trimmed inner text, or the full consumed span when the
	// match was made with Mode.Full.
	Text string
}

// Len returns the length of the consumed span.
func (m Match) Len() int {
	return m.End - m.Start
}

// Span returns the consumed span of buf.
func (m Match) Span(buf string) string {
	return buf[m.Start:m.End]
}

// Find locates the first region of buf bounded by d. It reports false when
// no start match is followed by an end match; that means "no more
// occurrences" and is not an error.
func Find(buf string, d Delimiter, mode Mode) (Match, bool) {
	loc := d.Start.FindStringIndex(buf)
	if loc == nil {
		return Match{}, false
	}
	from := loc[1]

	end, ok := findEnd(buf, d.End, from, mode.Greedy)
	if !ok {
		return Match{}, false
	}

	m := Match{
		Start:      loc[0],
		End:        end[1],
		InnerStart: from,
		InnerEnd:   end[0],
	}
	if d.EndLookahead {
		m.End = end[0]
	}

	if mode.Full {
		m.Text = buf[m.Start:m.End]
	} else {
		m.Text = strings.TrimSpace(buf[m.InnerStart:m.InnerEnd])
	}
	return m, true
}

// findEnd returns the nearest (or, when greedy, the last) end match that
// begins at or after from. Scanning starts at the beginning of the line
// holding from, so ^ still binds to real line starts and the work done is
// proportional to the distance to the match rather than to the buffer.
func findEnd(buf string, re *regexp.Regexp, from int, greedy bool) ([]int, bool) {
	if greedy && re.String() == "(?m)" {
		return []int{len(buf), len(buf)}, true
	}

	lineStart := strings.LastIndexByte(buf[:from], '\n') + 1
	tail := buf[lineStart:]

	if greedy {
		var last []int
		for _, loc := range re.FindAllStringIndex(tail, -1) {
			if lineStart+loc[0] >= from {
				last = loc
			}
		}
		if last == nil {
			return nil, false
		}
		return []int{lineStart + last[0], lineStart + last[1]}, true
	}

	// Matches before from can only sit on the line holding from, so the
	// limit grows only while that line keeps yielding them.
	for n := 1; ; n *= 2 {
		locs := re.FindAllStringIndex(tail, n)
		for _, loc := range locs {
			if lineStart+loc[0] >= from {
				return []int{lineStart + loc[0], lineStart + loc[1]}, true
			}
		}
		if len(locs) < n {
			return nil, false
		}
	}
}

// Excise removes the consumed span of m from buf by offset.
func Excise(buf string, m Match) string {
	return buf[:m.Start] + buf[m.End:]
}
