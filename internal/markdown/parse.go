package markdown

import (
	"regexp"
	"strings"
)

var orderedItemRe = regexp.MustCompile(`^(\d+)\.\s+(.*)$`)

type blockState int

const (
	stateNormal blockState = iota
	stateInCodeBlock
	stateInList
)

type parser struct {
	state blockState
	doc   Document

	code      CodeBlock
	codeLines []string

	list List
}

// Parse converts text into a Document.
func Parse(text string) Document {
	p := &parser{}
	for _, line := range strings.Split(text, "\n") {
		p.line(strings.TrimSuffix(line, "\r"))
	}
	p.finish()
	return p.doc
}

func (p *parser) line(line string) {
	if strings.HasPrefix(line, "```") {
		p.fence(line)
		return
	}

	if p.state == stateInCodeBlock {
		p.codeLines = append(p.codeLines, line)
		return
	}

	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}

	if kind, item, ok := matchListItem(trimmed); ok {
		if p.state == stateInList && p.list.Kind != kind {
			p.closeList()
		}
		if p.state != stateInList {
			p.state = stateInList
			p.list = List{Kind: kind}
		}
		p.list.Items = append(p.list.Items, item)
		return
	}

	p.closeList()

	switch {
	case strings.HasPrefix(line, "### "):
		p.doc = append(p.doc, Heading{Level: 3, Inlines: parseInline(line[4:])})
	case strings.HasPrefix(line, "## "):
		p.doc = append(p.doc, Heading{Level: 2, Inlines: parseInline(line[3:])})
	case strings.HasPrefix(line, "# "):
		p.doc = append(p.doc, Heading{Level: 1, Inlines: parseInline(line[2:])})
	case trimmed == "---":
		p.doc = append(p.doc, Rule{})
	default:
		p.doc = append(p.doc, Paragraph{Inlines: parseInline(line)})
	}
}

func (p *parser) fence(line string) {
	if p.state == stateInCodeBlock {
		p.closeCode()
		return
	}
	p.closeList()
	p.state = stateInCodeBlock
	p.code = CodeBlock{Lang: strings.TrimSpace(line[3:])}
	p.codeLines = nil
}

func (p *parser) closeCode() {
	p.code.Text = strings.Join(p.codeLines, "\n")
	p.doc = append(p.doc, p.code)
	p.code = CodeBlock{}
	p.codeLines = nil
	p.state = stateNormal
}

func (p *parser) closeList() {
	if p.state != stateInList {
		return
	}
	p.doc = append(p.doc, p.list)
	p.list = List{}
	p.state = stateNormal
}

// finish force-closes whatever construct is still open.
func (p *parser) finish() {
	switch p.state {
	case stateInCodeBlock:
		p.closeCode()
	case stateInList:
		p.closeList()
	}
}

// matchListItem recognises a list marker on an already trimmed line.
// Checklist markers are tried before the plain dash they start with.
func matchListItem(trimmed string) (ListKind, ListItem, bool) {
	switch {
	case strings.HasPrefix(trimmed, "- [ ] "):
		return Checklist, ListItem{Inlines: parseInline(trimmed[6:])}, true
	case strings.HasPrefix(trimmed, "- [x] "):
		return Checklist, ListItem{Checked: true, Inlines: parseInline(trimmed[6:])}, true
	case strings.HasPrefix(trimmed, "* "), strings.HasPrefix(trimmed, "- "):
		return Unordered, ListItem{Inlines: parseInline(trimmed[2:])}, true
	}
	if m := orderedItemRe.FindStringSubmatch(trimmed); m != nil {
		return Ordered, ListItem{Inlines: parseInline(m[2])}, true
	}
	return 0, ListItem{}, false
}
