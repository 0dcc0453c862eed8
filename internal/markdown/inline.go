package markdown

import "regexp"

var (
	codeSpanRe = regexp.MustCompile("`([^`]+)`")
	strongRe   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	emphasisRe = regexp.MustCompile(`\*(.+?)\*`)
)

// parseInline applies code spans, then bold, then italic, left to right.
// Each pass only sees text the previous pass left unclaimed, so spans never
// overlap and code span content is kept literal.
func parseInline(s string) []Inline {
	return splitBy(s, codeSpanRe, func(inner string) Inline {
		return Code{Value: inner}
	}, parseStrong)
}

func parseStrong(s string) []Inline {
	return splitBy(s, strongRe, func(inner string) Inline {
		return Strong{Children: parseEmphasis(inner)}
	}, parseEmphasis)
}

func parseEmphasis(s string) []Inline {
	return splitBy(s, emphasisRe, func(inner string) Inline {
		return Emphasis{Children: []Inline{Text{Value: inner}}}
	}, func(rest string) []Inline {
		return []Inline{Text{Value: rest}}
	})
}

func splitBy(s string, re *regexp.Regexp, matched func(string) Inline, between func(string) []Inline) []Inline {
	var out []Inline
	last := 0
	for _, loc := range re.FindAllStringSubmatchIndex(s, -1) {
		if loc[0] > last {
			out = append(out, between(s[last:loc[0]])...)
		}
		out = append(out, matched(s[loc[2]:loc[3]]))
		last = loc[1]
	}
	if last < len(s) {
		out = append(out, between(s[last:])...)
	}
	return out
}
