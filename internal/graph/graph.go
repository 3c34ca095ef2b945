package graph

import (
	"path"
	"strings"

	"github.com/skelly-dev/codegraph/internal/parser"
)

// symbolLookups indexes symbols by name with file, directory and module
// scopes. Unresolved edges are matched against the narrowest scope that has
// any candidate; a scope with more than one candidate leaves the edge
// unresolved rather than guessing.
type symbolLookups struct {
	snap                  *Snapshot
	global                map[string][]string
	byFile                map[string]map[string][]string
	byFileMethods         map[string]map[string][]string
	byDir                 map[string]map[string][]string
	byModule              map[string]map[string][]string
	children              map[string]map[string][]string
	importAliasCandidates map[string]map[string][]string
	importedFiles         map[string][]string
}

func buildSymbolLookup(snap *Snapshot) symbolLookups {
	lookup := symbolLookups{
		snap:          snap,
		global:        make(map[string][]string),
		byFile:        make(map[string]map[string][]string),
		byFileMethods: make(map[string]map[string][]string),
		byDir:         make(map[string]map[string][]string),
		byModule:      make(map[string]map[string][]string),
		children:      make(map[string]map[string][]string),
		importedFiles: make(map[string][]string),
	}

	for _, file := range snap.Paths() {
		byName := make(map[string][]string)
		methods := make(map[string][]string)
		dir := path.Dir(file)
		module := moduleName(file)
		if _, ok := lookup.byDir[dir]; !ok {
			lookup.byDir[dir] = make(map[string][]string)
		}
		if _, ok := lookup.byModule[module]; !ok {
			lookup.byModule[module] = make(map[string][]string)
		}

		for _, fqn := range snap.Files[file].Symbols {
			sym := snap.Symbols[fqn]
			lookup.global[sym.Name] = append(lookup.global[sym.Name], fqn)
			byName[sym.Name] = append(byName[sym.Name], fqn)
			lookup.byDir[dir][sym.Name] = append(lookup.byDir[dir][sym.Name], fqn)
			lookup.byModule[module][sym.Name] = append(lookup.byModule[module][sym.Name], fqn)
			if sym.Kind == parser.SymbolMethod {
				methods[sym.Name] = append(methods[sym.Name], fqn)
			}
			if sym.Parent != "" {
				if _, ok := lookup.children[sym.Parent]; !ok {
					lookup.children[sym.Parent] = make(map[string][]string)
				}
				lookup.children[sym.Parent][sym.Name] = append(lookup.children[sym.Parent][sym.Name], fqn)
			}
		}
		lookup.byFile[file] = byName
		lookup.byFileMethods[file] = methods
	}

	lookup.importAliasCandidates = buildImportAliasCandidates(snap)
	for file, byAlias := range lookup.importAliasCandidates {
		var files []string
		for _, candidates := range byAlias {
			files = append(files, candidates...)
		}
		lookup.importedFiles[file] = dedupeAndSort(files)
	}

	return lookup
}

// resolve returns the FQN an edge points at. Scopes are tried from the
// narrowest outward: the receiver's own type, the same file, files the
// source file imports, the same directory, the same top-level module and
// finally the whole repository. Calls made through a qualifier that names
// neither a receiver, a known type nor an import stay within the file's
// directory.
func (l symbolLookups) resolve(edge parser.Edge) (string, bool) {
	name := strings.TrimSpace(edge.TargetName)
	if name == "" {
		return "", false
	}
	accept := l.acceptor(edge.Type)
	receiver := isReceiverScoped(edge.Qualifier)

	if receiver {
		if source, ok := l.snap.Symbols[edge.Source]; ok {
			owner := source.Parent
			if source.Kind.IsType() {
				owner = source.FQN
			}
			if ids := accept(l.children[owner][name]); len(ids) > 0 {
				return chooseUnique(ids)
			}
		}
		if ids := accept(l.byFileMethods[edge.File][name]); len(ids) > 0 {
			return chooseUnique(ids)
		}
	}

	qualified := !receiver && edge.Qualifier != ""
	if qualified {
		if ids := accept(l.membersOf(lastQualifier(edge.Qualifier), name)); len(ids) > 0 {
			return chooseUnique(ids)
		}
		if byAlias := l.importAliasCandidates[edge.File]; byAlias != nil {
			if files, ok := byAlias[primaryQualifier(edge.Qualifier)]; ok {
				if ids := accept(l.collectFromFiles(files, name)); len(ids) > 0 {
					return chooseUnique(ids)
				}
			}
		}
	}

	if ids := accept(l.byFile[edge.File][name]); len(ids) > 0 {
		return chooseUnique(ids)
	}
	if ids := accept(l.collectFromFiles(l.importedFiles[edge.File], name)); len(ids) > 0 {
		return chooseUnique(ids)
	}
	if ids := accept(l.byDir[path.Dir(edge.File)][name]); len(ids) > 0 {
		return chooseUnique(ids)
	}
	if qualified {
		return "", false
	}
	if ids := accept(l.byModule[moduleName(edge.File)][name]); len(ids) > 0 {
		return chooseUnique(ids)
	}
	if ids := accept(l.global[name]); len(ids) > 0 {
		return chooseUnique(ids)
	}
	return "", false
}

// acceptor filters candidates to the kinds an edge type can target.
func (l symbolLookups) acceptor(edgeType parser.EdgeType) func([]string) []string {
	var ok func(parser.SymbolKind) bool
	switch edgeType {
	case parser.EdgeCall:
		ok = func(kind parser.SymbolKind) bool {
			switch kind {
			case parser.SymbolFunction, parser.SymbolMethod, parser.SymbolClass, parser.SymbolStruct:
				return true
			}
			return false
		}
	case parser.EdgeInherits, parser.EdgeImplements:
		ok = parser.SymbolKind.IsType
	default:
		ok = func(parser.SymbolKind) bool { return true }
	}

	return func(ids []string) []string {
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			if sym, exists := l.snap.Symbols[id]; exists && ok(sym.Kind) {
				out = append(out, id)
			}
		}
		return out
	}
}

// membersOf returns symbols called name declared inside any type called
// typeName.
func (l symbolLookups) membersOf(typeName, name string) []string {
	if typeName == "" {
		return nil
	}
	out := make([]string, 0)
	for _, owner := range l.global[typeName] {
		if !l.snap.Symbols[owner].Kind.IsType() && l.snap.Symbols[owner].Kind != parser.SymbolModule {
			continue
		}
		out = append(out, l.children[owner][name]...)
	}
	return dedupeAndSort(out)
}

func (l symbolLookups) collectFromFiles(files []string, name string) []string {
	out := make([]string, 0)
	for _, file := range files {
		byName := l.byFile[file]
		if byName == nil {
			continue
		}
		out = append(out, byName[name]...)
	}
	return dedupeAndSort(out)
}

func isReceiverScoped(qualifier string) bool {
	switch strings.TrimSpace(qualifier) {
	case "self", "this", "cls", "base", "super":
		return true
	}
	return false
}

func primaryQualifier(value string) string {
	value = strings.TrimSpace(strings.ReplaceAll(value, "::", "."))
	if value == "" {
		return ""
	}
	value = strings.TrimPrefix(value, "self.")
	value = strings.TrimPrefix(value, "this.")
	if idx := strings.Index(value, "."); idx != -1 {
		value = value[:idx]
	}
	return strings.TrimSpace(value)
}

func lastQualifier(value string) string {
	value = strings.TrimSpace(strings.ReplaceAll(value, "::", "."))
	if idx := strings.LastIndex(value, "."); idx != -1 {
		value = value[idx+1:]
	}
	return strings.TrimSpace(value)
}

func chooseUnique(targetIDs []string) (string, bool) {
	targetIDs = dedupeAndSort(targetIDs)
	if len(targetIDs) == 1 {
		return targetIDs[0], true
	}
	return "", false
}

func moduleName(file string) string {
	dir := path.Dir(file)
	if dir == "." {
		return "root"
	}
	return strings.Split(dir, "/")[0]
}
