package quiz

import "github.com/dgallion1/hrquiz/internal/segment"

// Kind is the structural role of a node in the quiz tree.
type Kind int

const (
	KindRoot Kind = iota
	KindItem
	KindTags
	KindQuestion
	KindQuestionText
	KindAnswerRight
	KindAnswerWrong
	KindFeedback
)

var kindNames = [...]string{
	KindRoot:         "quiz",
	KindItem:         "item",
	KindTags:         "tags",
	KindQuestion:     "question",
	KindQuestionText: "question text",
	KindAnswerRight:  "right answer",
	KindAnswerWrong:  "wrong answer",
	KindFeedback:     "feedback",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// cardinality is how many children of one kind a rendered parent accepts.
type cardinality int

const (
	exactlyOne cardinality = iota
	zeroOrMore
)

type childSpec struct {
	kind Kind
	card cardinality
}

// rule is the fixed, type-level matching rule of a node kind. Children are
// decomposed in declaration order.
type rule struct {
	delim    segment.Delimiter
	mode     segment.Mode
	children []childSpec

	// sequential resumes the search for the next child right after the
	// previous one instead of restarting on the excised text. Only valid
	// when child spans start and end on line boundaries and their start
	// pattern cannot match across a line break.
	sequential bool
}

// answerEnd bounds question text and answers: the next line starting with
// an answer marker, or the end of the buffer.
const answerEnd = `^[-+]|\z`

var rules = [...]rule{
	KindRoot: {
		delim:    segment.NewDelimiter(``, ``, false),
		mode:       segment.Mode{Greedy: true},
		children:   []childSpec{{KindItem, zeroOrMore}},
		sequential: true,
	},
	KindItem: {
		delim: segment.NewDelimiter(`^%tags%$`, `^%~feedback%$`, false),
		mode:  segment.Mode{Full: true},
		children: []childSpec{
			{KindTags, exactlyOne},
			{KindQuestion, exactlyOne},
			{KindFeedback, exactlyOne},
		},
	},
	KindTags: {
		delim: segment.NewDelimiter(`^%tags%$`, `^%~tags%$`, false),
	},
	KindQuestion: {
		delim: segment.NewDelimiter(`^%question%$`, `^%~question%$`, false),
		children: []childSpec{
			{KindQuestionText, exactlyOne},
			{KindAnswerRight, zeroOrMore},
			{KindAnswerWrong, zeroOrMore},
		},
	},
	KindQuestionText: {
		delim: segment.NewDelimiter(`\A\s*`, answerEnd, true),
	},
	KindAnswerRight: {
		delim: segment.NewDelimiter(`^\+`, answerEnd, true),
	},
	KindAnswerWrong: {
		delim: segment.NewDelimiter(`^-`, answerEnd, true),
	},
	KindFeedback: {
		delim: segment.NewDelimiter(`^%feedback%$`, `^%~feedback%$`, false),
	},
}

// IsLeaf reports whether k declares no child kinds.
func (k Kind) IsLeaf() bool {
	return len(rules[k].children) == 0
}
