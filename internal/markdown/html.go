package markdown

import (
	"strconv"
	"strings"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// Escape replaces the five HTML-significant characters.
func Escape(s string) string {
	return htmlEscaper.Replace(s)
}

// RenderHTML parses text and renders it in one step.
func RenderHTML(text string) string {
	return Parse(text).HTML()
}

// HTML renders the document. Every text node is escaped exactly once.
func (d Document) HTML() string {
	var b strings.Builder
	for _, blk := range d {
		writeBlock(&b, blk)
	}
	return b.String()
}

func writeBlock(b *strings.Builder, blk Block) {
	switch v := blk.(type) {
	case Paragraph:
		b.WriteString("<p>")
		writeInlines(b, v.Inlines)
		b.WriteString("</p>\n")
	case Heading:
		tag := "h" + strconv.Itoa(v.Level)
		b.WriteString("<" + tag + ">")
		writeInlines(b, v.Inlines)
		b.WriteString("</" + tag + ">\n")
	case Rule:
		b.WriteString("<hr>\n")
	case List:
		writeList(b, v)
	case CodeBlock:
		b.WriteString("<pre><code")
		if v.Lang != "" {
			b.WriteString(` class="language-` + Escape(v.Lang) + `"`)
		}
		b.WriteString(">")
		b.WriteString(Escape(v.Text))
		b.WriteString("</code></pre>\n")
	}
}

func writeList(b *strings.Builder, l List) {
	open, closing := "<ul>", "</ul>"
	switch l.Kind {
	case Ordered:
		open, closing = "<ol>", "</ol>"
	case Checklist:
		open = `<ul class="checklist">`
	}
	b.WriteString(open + "\n")
	for _, item := range l.Items {
		b.WriteString("<li>")
		if l.Kind == Checklist {
			if item.Checked {
				b.WriteString(`<input type="checkbox" disabled checked> `)
			} else {
				b.WriteString(`<input type="checkbox" disabled> `)
			}
		}
		writeInlines(b, item.Inlines)
		b.WriteString("</li>\n")
	}
	b.WriteString(closing + "\n")
}

func writeInlines(b *strings.Builder, inlines []Inline) {
	for _, in := range inlines {
		switch v := in.(type) {
		case Text:
			b.WriteString(Escape(v.Value))
		case Code:
			b.WriteString("<code>" + Escape(v.Value) + "</code>")
		case Strong:
			b.WriteString("<strong>")
			writeInlines(b, v.Children)
			b.WriteString("</strong>")
		case Emphasis:
			b.WriteString("<em>")
			writeInlines(b, v.Children)
			b.WriteString("</em>")
		}
	}
}

// PlainText flattens the document to its visible text, one block per line.
// The modal's copy action uses it.
func (d Document) PlainText() string {
	var lines []string
	for _, blk := range d {
		switch v := blk.(type) {
		case Paragraph:
			lines = append(lines, inlineText(v.Inlines))
		case Heading:
			lines = append(lines, inlineText(v.Inlines))
		case Rule:
			lines = append(lines, "---")
		case List:
			for _, item := range v.Items {
				lines = append(lines, inlineText(item.Inlines))
			}
		case CodeBlock:
			lines = append(lines, v.Text)
		}
	}
	return strings.Join(lines, "\n")
}

func inlineText(inlines []Inline) string {
	var b strings.Builder
	for _, in := range inlines {
		switch v := in.(type) {
		case Text:
			b.WriteString(v.Value)
		case Code:
			b.WriteString(v.Value)
		case Strong:
			b.WriteString(inlineText(v.Children))
		case Emphasis:
			b.WriteString(inlineText(v.Children))
		}
	}
	return b.String()
}
