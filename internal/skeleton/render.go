package skeleton

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/skelly-dev/codegraph/internal/parser"
)

const (
	// ElisionMarker replaces symbol bodies.
	ElisionMarker = "..."

	indentUnit = "  "
)

// EstimateTokens approximates the token count of text as one token per four
// characters, rounded up.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

func headerLine(path string) string {
	return "// " + path
}

func errorLine(reason string) string {
	return "// error: " + reason
}

func truncationLine(remaining int) string {
	switch remaining {
	case 0:
		return "// ... truncated"
	case 1:
		return "// ... truncated (1 more symbol)"
	default:
		return fmt.Sprintf("// ... truncated (%d more symbols)", remaining)
	}
}

// symbolLines renders symbols in file order. Nested symbols are indented
// under their parent; a symbol with children keeps its signature line
// without the elision marker.
func symbolLines(symbols []parser.Symbol) []string {
	depth := make(map[string]int, len(symbols))
	hasChildren := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		if sym.Parent != "" {
			hasChildren[sym.Parent] = true
		}
	}

	lines := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		level := 0
		if parentDepth, ok := depth[sym.Parent]; ok && sym.Parent != "" {
			level = parentDepth + 1
		}
		depth[sym.FQN] = level

		signature := sym.Signature
		if signature == "" {
			signature = sym.Kind.String() + " " + sym.Name
		}

		var b strings.Builder
		b.WriteString(strings.Repeat(indentUnit, level))
		b.WriteString(signature)
		if !hasChildren[sym.FQN] {
			b.WriteString(" { " + ElisionMarker + " }")
		}
		fmt.Fprintf(&b, "  // L%d-%d", sym.StartLine, sym.EndLine)
		lines = append(lines, b.String())
	}
	return lines
}
