package skeleton

import (
	"strings"
	"unicode/utf8"
)

// draft is the full rendering of one file before the budget is applied.
// head holds the header and import (or error) lines, body the symbol lines.
type draft struct {
	path     string
	language string
	depth    int
	head     []string
	body     []string
	err      string
}

// budget tracks tokens spent across every file of one request.
type budget struct {
	max  int
	used int
}

func (b *budget) fits(chars int) bool {
	return b.used+(chars+3)/4 <= b.max
}

// fit renders the longest prefix of d that fits the remaining budget. When
// anything is cut, the prefix ends with a truncation marker that is itself
// within budget, or the content is empty when not even the marker fits.
func (b *budget) fit(d draft) (FileSkeleton, bool) {
	out := FileSkeleton{
		Path:     d.path,
		Language: d.language,
		Depth:    d.depth,
		Error:    d.err,
	}

	all := make([]string, 0, len(d.head)+len(d.body))
	all = append(all, d.head...)
	all = append(all, d.body...)

	var (
		lines []string
		chars int
	)
	for _, line := range all {
		cost := utf8.RuneCountInString(line) + 1
		if !b.fits(chars + cost) {
			break
		}
		lines = append(lines, line)
		chars += cost
	}

	kept := len(lines)
	complete := kept == len(all)
	if !complete {
		for {
			marker := truncationLine(len(d.body) - max(0, kept-len(d.head)))
			cost := utf8.RuneCountInString(marker) + 1
			if b.fits(chars + cost) {
				lines = append(lines, marker)
				chars += cost
				break
			}
			if kept == 0 {
				break
			}
			kept--
			chars -= utf8.RuneCountInString(lines[kept]) + 1
			lines = lines[:kept]
		}
		out.Truncated = true
	}

	out.Symbols = max(0, kept-len(d.head))
	out.Omitted = len(d.body) - out.Symbols
	if len(lines) > 0 {
		out.Content = strings.Join(lines, "\n") + "\n"
	}
	out.Tokens = EstimateTokens(out.Content)
	b.used += out.Tokens
	return out, complete
}
