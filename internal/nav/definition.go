package nav

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/parser"
)

// ErrAmbiguous is returned by ResolveSingle when a query names more than one
// symbol.
var ErrAmbiguous = errors.New("ambiguous symbol")

// Resolve returns the symbols a query names: the symbol with that exact FQN,
// otherwise every symbol with that short name, otherwise every symbol whose
// unqualified FQN equals or ends with the query. Results are sorted by file,
// line and FQN.
func Resolve(snap *graph.Snapshot, query string) []parser.Symbol {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	if sym, ok := snap.Symbol(query); ok {
		return []parser.Symbol{sym}
	}

	out := snap.Named(query)
	if len(out) == 0 && strings.Contains(query, ".") {
		query = parser.BaseFQN(strings.ReplaceAll(query, "::", "."))
		for _, sym := range snap.Symbols {
			base := parser.BaseFQN(sym.FQN)
			if base == query || strings.HasSuffix(base, "."+query) {
				out = append(out, *sym)
			}
		}
	}
	sortSymbols(out)
	return out
}

// ResolveSingle resolves a query that must name exactly one symbol.
func ResolveSingle(snap *graph.Snapshot, query string) (parser.Symbol, error) {
	matches := Resolve(snap, query)
	if len(matches) == 0 {
		return parser.Symbol{}, fmt.Errorf("symbol %q: %w", query, graph.ErrNotFound)
	}
	if len(matches) == 1 {
		return matches[0], nil
	}

	options := make([]string, 0, len(matches))
	for _, match := range matches {
		options = append(options, match.FQN)
	}
	sort.Strings(options)
	return parser.Symbol{}, fmt.Errorf("%w %q; use one of: %s", ErrAmbiguous, query, strings.Join(options, ", "))
}

// ResolveSymbolOrLocation accepts either a symbol query or a "file:line"
// location.
func ResolveSymbolOrLocation(snap *graph.Snapshot, query string) (parser.Symbol, error) {
	sym, err := ResolveSingle(snap, query)
	if err == nil {
		return sym, nil
	}
	if !strings.Contains(query, ":") {
		return parser.Symbol{}, err
	}

	file, line, ok := ParseLocationQuery(query)
	if !ok {
		return parser.Symbol{}, err
	}
	if candidate, ok := ResolveAtLocation(snap, snap.Rel(file), line); ok {
		return candidate, nil
	}
	return parser.Symbol{}, fmt.Errorf("symbol %q: %w", query, graph.ErrNotFound)
}

// ResolveAtLocation returns the innermost symbol whose range contains line,
// or the closest symbol starting above it.
func ResolveAtLocation(snap *graph.Snapshot, file string, line int) (parser.Symbol, bool) {
	var (
		best    parser.Symbol
		found   bool
		nearest parser.Symbol
		near    bool
	)
	for _, candidate := range snap.FileSymbols(file) {
		if candidate.StartLine <= line && line <= candidate.EndLine {
			if !found || candidate.EndLine-candidate.StartLine < best.EndLine-best.StartLine {
				best = candidate
				found = true
			}
			continue
		}
		if candidate.StartLine <= line && (!near || candidate.StartLine > nearest.StartLine) {
			nearest = candidate
			near = true
		}
	}
	if found {
		return best, true
	}
	return nearest, near
}

func ParseLocationQuery(query string) (file string, line int, ok bool) {
	idx := strings.LastIndex(query, ":")
	if idx <= 0 || idx >= len(query)-1 {
		return "", 0, false
	}
	file = strings.TrimSpace(query[:idx])
	lineRaw := strings.TrimSpace(query[idx+1:])
	if file == "" || lineRaw == "" {
		return "", 0, false
	}
	parsedLine, err := strconv.Atoi(lineRaw)
	if err != nil || parsedLine <= 0 {
		return "", 0, false
	}
	return file, parsedLine, true
}

// FindDefinitions returns every symbol a name resolves to, optionally
// restricted to one kind. A function hint also matches methods. Ambiguous
// names return all candidates; an unknown name returns nothing.
func FindDefinitions(snap *graph.Snapshot, name string, kind *parser.SymbolKind) []parser.Symbol {
	matches := Resolve(snap, name)
	if kind == nil {
		return matches
	}
	out := make([]parser.Symbol, 0, len(matches))
	for _, sym := range matches {
		if kindMatches(*kind, sym.Kind) {
			out = append(out, sym)
		}
	}
	return out
}

func kindMatches(hint, kind parser.SymbolKind) bool {
	if hint == kind {
		return true
	}
	switch hint {
	case parser.SymbolFunction:
		return kind == parser.SymbolMethod
	case parser.SymbolClass:
		return kind == parser.SymbolStruct || kind == parser.SymbolInterface
	}
	return false
}

// FindReferences returns the edges that point at the symbols a name
// resolves to, plus unresolved edges recorded under the same name. When dir
// is set only references in files under dir are returned.
func FindReferences(snap *graph.Snapshot, name string, kind *parser.SymbolKind, dir string) []parser.Edge {
	var out []parser.Edge
	seen := make(map[parser.Edge]bool)
	add := func(edge parser.Edge) {
		if seen[edge] || !underDir(edge.File, dir) {
			return
		}
		seen[edge] = true
		out = append(out, edge)
	}

	definitions := FindDefinitions(snap, name, kind)
	for _, def := range definitions {
		for _, edge := range snap.Incoming(def.FQN) {
			add(edge)
		}
	}

	short := name
	if len(definitions) > 0 {
		short = definitions[0].Name
	} else if idx := strings.LastIndexAny(short, ".:"); idx != -1 {
		short = short[idx+1:]
	}
	for _, edge := range snap.Edges {
		if !edge.Resolved() && edge.TargetName == short {
			add(edge)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Type < b.Type
	})
	return out
}

func underDir(file, dir string) bool {
	dir = strings.Trim(path.Clean("/"+strings.TrimPrefix(dir, "./")), "/")
	if dir == "" || dir == "." {
		return true
	}
	return file == dir || strings.HasPrefix(file, dir+"/")
}

func sortSymbols(symbols []parser.Symbol) {
	sort.Slice(symbols, func(i, j int) bool {
		a, b := symbols[i], symbols[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.FQN < b.FQN
	})
}
