package extract

import (
	"sort"

	"github.com/skelly-dev/codegraph/internal/parser"
)

// Diff is the symbol-level change between two extractions of one file.
type Diff struct {
	Added   []parser.Symbol
	Removed []parser.Symbol
	Changed []parser.Symbol
}

// Empty reports whether the extraction did not change any symbol.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// ExtractIncremental extracts tree and diffs the result against the symbols
// previously extracted for the same file.
func (x *Extractor) ExtractIncremental(tree *parser.Tree, previous []parser.Symbol) (*parser.FileSymbols, Diff, error) {
	file, err := x.Extract(tree)
	if err != nil {
		return nil, Diff{}, err
	}
	return file, DiffSymbols(previous, file.Symbols), nil
}

// DiffSymbols compares two symbol sets by FQN. A symbol is changed when any
// of its recorded fields differ.
func DiffSymbols(previous, current []parser.Symbol) Diff {
	before := make(map[string]parser.Symbol, len(previous))
	for _, sym := range previous {
		before[sym.FQN] = sym
	}

	var diff Diff
	seen := make(map[string]bool, len(current))
	for _, sym := range current {
		seen[sym.FQN] = true
		old, existed := before[sym.FQN]
		switch {
		case !existed:
			diff.Added = append(diff.Added, sym)
		case old != sym:
			diff.Changed = append(diff.Changed, sym)
		}
	}
	for _, sym := range previous {
		if !seen[sym.FQN] {
			diff.Removed = append(diff.Removed, sym)
		}
	}

	sortByFQN(diff.Added)
	sortByFQN(diff.Removed)
	sortByFQN(diff.Changed)
	return diff
}

func sortByFQN(symbols []parser.Symbol) {
	sort.Slice(symbols, func(i, j int) bool {
		return symbols[i].FQN < symbols[j].FQN
	})
}
