// Package markdown turns model output into structured content.
//
// It understands a deliberately small, line-oriented subset: fenced code
// blocks, three heading levels, horizontal rules, unordered, ordered and
// checklist items, paragraphs, and inline code, bold and italic. Rendering is
// a pure function of its input.
package markdown

// Document is the ordered list of top-level blocks.
type Document []Block

// Block is one of Paragraph, Heading, Rule, List or CodeBlock.
type Block interface {
	block()
}

type Paragraph struct {
	Inlines []Inline
}

// Heading levels run from 1 to 3.
type Heading struct {
	Level   int
	Inlines []Inline
}

// Rule is a horizontal rule.
type Rule struct{}

type ListKind int

const (
	Unordered ListKind = iota
	Ordered
	Checklist
)

func (k ListKind) String() string {
	switch k {
	case Unordered:
		return "unordered"
	case Ordered:
		return "ordered"
	case Checklist:
		return "checklist"
	default:
		return "unknown"
	}
}

// List is a run of consecutive items of one kind.
type List struct {
	Kind  ListKind
	Items []ListItem
}

type ListItem struct {
	// Checked is meaningful for Checklist items only.
	Checked bool
	Inlines []Inline
}

// CodeBlock holds fenced content verbatim. Lang is decorative.
type CodeBlock struct {
	Lang string
	Text string
}

func (Paragraph) block() {}
func (Heading) block()   {}
func (Rule) block()      {}
func (List) block()      {}
func (CodeBlock) block() {}

// Inline is one of Text, Code, Strong or Emphasis.
type Inline interface {
	inline()
}

type Text struct {
	Value string
}

// Code is an inline code span; its content is never formatted further.
type Code struct {
	Value string
}

type Strong struct {
	Children []Inline
}

type Emphasis struct {
	Children []Inline
}

func (Text) inline()     {}
func (Code) inline()     {}
func (Strong) inline()   {}
func (Emphasis) inline() {}
