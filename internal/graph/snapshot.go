package graph

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/skelly-dev/codegraph/internal/parser"
)

// ErrNotFound is returned by lookups that match no symbol.
var ErrNotFound = errors.New("not found")

// FileEntry is one indexed file. Symbols lists global FQNs in file order.
type FileEntry struct {
	Path     string
	Language string
	Hash     string
	Imports  []string
	Symbols  []string
	Skipped  int
	HasError bool
	Failure  string
}

// Snapshot is one immutable generation of the symbol graph. Readers keep the
// pointer they were handed for the duration of a query.
type Snapshot struct {
	Generation uint64
	Root       string
	UpdatedAt  time.Time
	Files      map[string]*FileEntry
	Symbols    map[string]*parser.Symbol
	Edges      []parser.Edge
	Issues     []parser.ParseIssue

	out    map[string][]int
	in     map[string][]int
	byName map[string][]string
	paths  []string
}

// Stats counts what a snapshot holds.
type Stats struct {
	Files      int `json:"files"`
	Symbols    int `json:"symbols"`
	Edges      int `json:"edges"`
	Unresolved int `json:"unresolved"`
	Failed     int `json:"failed"`
}

func emptySnapshot(root string) *Snapshot {
	return Assemble(root, nil, nil, 0)
}

// Assemble builds a snapshot from per-file extraction records. The result
// depends only on the set of records, never on their order, so an
// incrementally maintained record set and a fresh scan assemble to the same
// graph.
func Assemble(root string, records []parser.FileSymbols, issues []parser.ParseIssue, generation uint64) *Snapshot {
	records = append([]parser.FileSymbols(nil), records...)
	sort.Slice(records, func(i, j int) bool {
		return records[i].Path < records[j].Path
	})

	s := &Snapshot{
		Generation: generation,
		Root:       root,
		UpdatedAt:  time.Now(),
		Files:      make(map[string]*FileEntry, len(records)),
		Symbols:    make(map[string]*parser.Symbol),
		Issues:     append([]parser.ParseIssue(nil), issues...),
		out:        make(map[string][]int),
		in:         make(map[string][]int),
		byName:     make(map[string][]string),
	}

	failures := make(map[string]string, len(issues))
	for _, issue := range issues {
		if issue.Severity == "error" {
			failures[issue.File] = issue.Message
		}
	}

	// Local FQNs declared in more than one file are qualified by path.
	declaredIn := make(map[string]int)
	for _, record := range records {
		for _, sym := range record.Symbols {
			declaredIn[sym.FQN]++
		}
	}

	globals := make(map[string]map[string]string, len(records))
	for _, record := range records {
		local := make(map[string]string, len(record.Symbols))
		for _, sym := range record.Symbols {
			fqn := sym.FQN
			if declaredIn[fqn] > 1 {
				fqn = parser.QualifyFQN(fqn, record.Path)
			}
			local[sym.FQN] = fqn
		}
		globals[record.Path] = local
	}

	for _, record := range records {
		local := globals[record.Path]
		entry := &FileEntry{
			Path:     record.Path,
			Language: record.Language,
			Hash:     record.Hash,
			Imports:  record.Imports,
			Skipped:  record.Skipped,
			HasError: record.HasError,
			Failure:  failures[record.Path],
			Symbols:  make([]string, 0, len(record.Symbols)),
		}
		for _, sym := range record.Symbols {
			sym := sym
			sym.FQN = local[sym.FQN]
			if sym.Parent != "" {
				sym.Parent = local[sym.Parent]
			}
			s.Symbols[sym.FQN] = &sym
			s.byName[sym.Name] = append(s.byName[sym.Name], sym.FQN)
			entry.Symbols = append(entry.Symbols, sym.FQN)
		}
		s.Files[record.Path] = entry
		s.paths = append(s.paths, record.Path)
	}
	for name, fqns := range s.byName {
		s.byName[name] = dedupeAndSort(fqns)
	}

	lookups := buildSymbolLookup(s)
	for _, record := range records {
		local := globals[record.Path]
		for _, edge := range record.Edges {
			if mapped, ok := local[edge.Source]; ok {
				edge.Source = mapped
			}
			edge.Target = ""
			if target, ok := lookups.resolve(edge); ok {
				edge.Target = target
				if edge.Type == parser.EdgeInherits && s.Symbols[target].Kind == parser.SymbolInterface {
					edge.Type = parser.EdgeImplements
				}
			}
			s.Edges = append(s.Edges, edge)
		}
	}

	sort.SliceStable(s.Edges, func(i, j int) bool {
		return edgeLess(s.Edges[i], s.Edges[j])
	})
	for i, edge := range s.Edges {
		s.out[edge.Source] = append(s.out[edge.Source], i)
		if edge.Resolved() {
			s.in[edge.Target] = append(s.in[edge.Target], i)
		}
	}
	return s
}

func edgeLess(a, b parser.Edge) bool {
	if a.File != b.File {
		return a.File < b.File
	}
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	if a.Column != b.Column {
		return a.Column < b.Column
	}
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	if a.TargetName != b.TargetName {
		return a.TargetName < b.TargetName
	}
	return a.Source < b.Source
}

// Symbol returns the symbol with the given global FQN.
func (s *Snapshot) Symbol(fqn string) (parser.Symbol, bool) {
	sym, ok := s.Symbols[fqn]
	if !ok {
		return parser.Symbol{}, false
	}
	return *sym, true
}

// Named returns every symbol whose short name is name, sorted by FQN.
func (s *Snapshot) Named(name string) []parser.Symbol {
	fqns := s.byName[name]
	out := make([]parser.Symbol, 0, len(fqns))
	for _, fqn := range fqns {
		out = append(out, *s.Symbols[fqn])
	}
	return out
}

// Names returns all distinct short names, sorted.
func (s *Snapshot) Names() []string {
	out := make([]string, 0, len(s.byName))
	for name := range s.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// FileSymbols returns the symbols declared in path, in file order.
func (s *Snapshot) FileSymbols(path string) []parser.Symbol {
	entry, ok := s.Files[path]
	if !ok {
		return nil
	}
	out := make([]parser.Symbol, 0, len(entry.Symbols))
	for _, fqn := range entry.Symbols {
		out = append(out, *s.Symbols[fqn])
	}
	return out
}

// Outgoing returns the edges whose source is fqn, including unresolved ones.
func (s *Snapshot) Outgoing(fqn string) []parser.Edge {
	return s.collect(s.out[fqn])
}

// Incoming returns the resolved edges that target fqn.
func (s *Snapshot) Incoming(fqn string) []parser.Edge {
	return s.collect(s.in[fqn])
}

func (s *Snapshot) collect(indices []int) []parser.Edge {
	out := make([]parser.Edge, 0, len(indices))
	for _, idx := range indices {
		out = append(out, s.Edges[idx])
	}
	return out
}

// Paths returns every indexed file path, sorted.
func (s *Snapshot) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Rel converts a path given by a caller into the relative, slash-separated
// form files are indexed under.
func (s *Snapshot) Rel(path string) string {
	path = filepath.Clean(path)
	if filepath.IsAbs(path) && s.Root != "" {
		if rel, err := filepath.Rel(s.Root, path); err == nil && !strings.HasPrefix(rel, "..") {
			path = rel
		}
	}
	return filepath.ToSlash(path)
}

// FileOf returns the file an edge endpoint belongs to. Endpoints are either
// symbol FQNs or, for file-scope references, the file path itself.
func (s *Snapshot) FileOf(endpoint string) (string, bool) {
	if sym, ok := s.Symbols[endpoint]; ok {
		return sym.File, true
	}
	if _, ok := s.Files[endpoint]; ok {
		return endpoint, true
	}
	return "", false
}

// FileDependencies maps each file to the files its resolved edges target.
func (s *Snapshot) FileDependencies() map[string][]string {
	deps := make(map[string][]string)
	for _, edge := range s.Edges {
		if !edge.Resolved() {
			continue
		}
		target := s.Symbols[edge.Target].File
		if target == edge.File {
			continue
		}
		deps[edge.File] = append(deps[edge.File], target)
	}
	for file, targets := range deps {
		deps[file] = dedupeAndSort(targets)
	}
	return deps
}

// Stats counts files, symbols and edges.
func (s *Snapshot) Stats() Stats {
	stats := Stats{
		Files:   len(s.Files),
		Symbols: len(s.Symbols),
		Edges:   len(s.Edges),
	}
	for _, edge := range s.Edges {
		if !edge.Resolved() {
			stats.Unresolved++
		}
	}
	for _, entry := range s.Files {
		if entry.Failure != "" {
			stats.Failed++
		}
	}
	return stats
}

// Equal reports whether two snapshots hold the same files, symbols and
// edges. Generation and timestamps are ignored.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if len(s.Files) != len(other.Files) || len(s.Symbols) != len(other.Symbols) || len(s.Edges) != len(other.Edges) {
		return false
	}
	for fqn, sym := range s.Symbols {
		o, ok := other.Symbols[fqn]
		if !ok || *o != *sym {
			return false
		}
	}
	for i := range s.Edges {
		if s.Edges[i] != other.Edges[i] {
			return false
		}
	}
	return true
}

func dedupeAndSort(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}
