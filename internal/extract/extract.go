// Package extract turns query captures into symbol and edge records.
//
// Queries follow one naming convention across languages:
//
//	@definition.<kind>        the definition node
//	@name.definition.<kind>   its name
//	@reference.<type>         a usage
//	@name.reference.<type>    the referenced name
//	@parent                   explicit owner of a definition (Go receivers)
//	@source                   explicit owner of a reference (base lists)
//	@qualifier                expression a call is made through
//	@import                   an import statement, kept on one line
package extract

import (
	"iter"
	"sort"
	"strings"

	"github.com/skelly-dev/codegraph/internal/parser"
	sitter "github.com/smacker/go-tree-sitter"
)

const (
	impl               = "impl"
	maxSignatureLength = 240
	maxQualifierLength = 80
	maxImportLength    = 240
)

// Extractor runs the tags query of a tree's language and interprets the captures.
type Extractor struct {
	pool *parser.Pool
}

func New(pool *parser.Pool) *Extractor {
	return &Extractor{pool: pool}
}

// Extract returns the symbols, edges and imports declared in tree. Output is
// fully sorted, so extracting the same tree twice yields identical records.
// Captures that do not form a valid symbol or reference are counted in
// Skipped rather than failing the file.
func (x *Extractor) Extract(tree *parser.Tree) (*parser.FileSymbols, error) {
	captures, err := x.pool.RunQuery(tree, parser.QueryTags)
	if err != nil {
		return nil, err
	}

	b := newFileBuilder(tree.Path, tree.Source)
	for match := range groupMatches(captures) {
		b.addMatch(match)
	}

	file := b.build()
	file.Language = tree.Language.Name()
	file.Hash = tree.Digest
	file.HasError = tree.HasErrors()
	return file, nil
}

// groupMatches regroups a capture stream into the captures of each match.
func groupMatches(captures iter.Seq[parser.Capture]) iter.Seq[[]parser.Capture] {
	return func(yield func([]parser.Capture) bool) {
		var current []parser.Capture
		for c := range captures {
			if len(current) > 0 && (current[0].Match != c.Match || current[0].Pattern != c.Pattern) {
				if !yield(current) {
					return
				}
				current = nil
			}
			current = append(current, c)
		}
		if len(current) > 0 {
			yield(current)
		}
	}
}

type definition struct {
	kind      parser.SymbolKind
	scopeOnly bool
	name      string
	owner     string
	node      *sitter.Node
	start     uint32
	end       uint32
	nameStart uint32
}

type reference struct {
	edgeType  parser.EdgeType
	name      string
	qualifier string
	owner     string
	offset    uint32
	line      int
	column    int
}

type fileBuilder struct {
	path     string
	src      []byte
	defs     []definition
	refs     []reference
	imports  []string
	skipped  int
	defNames map[uint32]bool
	refIndex map[uint32]int
}

func newFileBuilder(path string, src []byte) *fileBuilder {
	return &fileBuilder{
		path:     path,
		src:      src,
		defNames: make(map[uint32]bool),
		refIndex: make(map[uint32]int),
	}
}

func (b *fileBuilder) addMatch(captures []parser.Capture) {
	var (
		defNode, defName, refNode, refName *sitter.Node
		owner, source, qualifier, imp      *sitter.Node
		defKind, refKind                   string
	)

	for _, c := range captures {
		switch name := c.Name; {
		case strings.HasPrefix(name, "name.definition."):
			defName = c.Node
			if defKind == "" {
				defKind = strings.TrimPrefix(name, "name.definition.")
			}
		case strings.HasPrefix(name, "definition."):
			defNode = c.Node
			defKind = strings.TrimPrefix(name, "definition.")
		case strings.HasPrefix(name, "name.reference."):
			refName = c.Node
			if refKind == "" {
				refKind = strings.TrimPrefix(name, "name.reference.")
			}
		case strings.HasPrefix(name, "reference."):
			refNode = c.Node
			refKind = strings.TrimPrefix(name, "reference.")
		case name == "parent":
			owner = c.Node
		case name == "source":
			source = c.Node
		case name == "qualifier":
			qualifier = c.Node
		case name == "import":
			imp = c.Node
		}
	}

	switch {
	case defNode != nil || defName != nil:
		b.addDefinition(defNode, defName, defKind, owner)
	case refNode != nil || refName != nil:
		b.addReference(refName, refKind, source, qualifier)
	case imp != nil:
		b.addImport(imp)
	}
}

func (b *fileBuilder) addDefinition(node, nameNode *sitter.Node, kindName string, owner *sitter.Node) {
	if node == nil || nameNode == nil {
		b.skipped++
		return
	}
	name := strings.TrimSpace(nameNode.Content(b.src))
	if name == "" {
		b.skipped++
		return
	}

	def := definition{
		name:      normalizeScope(name),
		node:      node,
		start:     node.StartByte(),
		end:       node.EndByte(),
		nameStart: nameNode.StartByte(),
	}
	if kindName == impl {
		def.scopeOnly = true
	} else {
		kind, ok := parser.ParseSymbolKind(kindName)
		if !ok {
			b.skipped++
			return
		}
		def.kind = kind
	}
	if owner != nil {
		def.owner = normalizeScope(strings.TrimSpace(owner.Content(b.src)))
	}

	if b.defNames[def.nameStart] {
		return
	}
	b.defNames[def.nameStart] = true
	b.defs = append(b.defs, def)
}

func (b *fileBuilder) addReference(nameNode *sitter.Node, kindName string, source, qualifier *sitter.Node) {
	if nameNode == nil {
		b.skipped++
		return
	}
	name := strings.TrimSpace(nameNode.Content(b.src))
	edgeType, ok := parser.ParseEdgeType(kindName)
	if name == "" || !ok {
		b.skipped++
		return
	}

	point := nameNode.StartPoint()
	ref := reference{
		edgeType: edgeType,
		name:     name,
		offset:   nameNode.StartByte(),
		line:     int(point.Row) + 1,
		column:   int(point.Column) + 1,
	}
	if source != nil {
		ref.owner = strings.TrimSpace(source.Content(b.src))
	}
	if qualifier != nil {
		ref.qualifier = compact(qualifier.Content(b.src), maxQualifierLength)
	}

	// Several patterns can capture the same name; keep the most specific one.
	if idx, exists := b.refIndex[ref.offset]; exists {
		if b.refs[idx].qualifier == "" && ref.qualifier != "" {
			b.refs[idx] = ref
		}
		return
	}
	b.refIndex[ref.offset] = len(b.refs)
	b.refs = append(b.refs, ref)
}

func (b *fileBuilder) addImport(node *sitter.Node) {
	text := compact(node.Content(b.src), maxImportLength)
	if text == "" {
		return
	}
	for _, existing := range b.imports {
		if existing == text {
			return
		}
	}
	b.imports = append(b.imports, text)
}

type scopeEntry struct {
	end       uint32
	scope     string
	symbol    int // index into symbols, -1 for scope-only entries
	typeScope bool
}

func (b *fileBuilder) build() *parser.FileSymbols {
	sort.SliceStable(b.defs, func(i, j int) bool {
		if b.defs[i].start != b.defs[j].start {
			return b.defs[i].start < b.defs[j].start
		}
		if b.defs[i].end != b.defs[j].end {
			return b.defs[i].end > b.defs[j].end
		}
		return b.defs[i].nameStart < b.defs[j].nameStart
	})

	symbols := make([]parser.Symbol, 0, len(b.defs))
	ranges := make([][2]uint32, 0, len(b.defs))
	pendingParents := make(map[int]string)
	used := make(map[string]bool, len(b.defs))
	var stack []scopeEntry

	for _, def := range b.defs {
		for len(stack) > 0 && stack[len(stack)-1].end <= def.start {
			stack = stack[:len(stack)-1]
		}

		var container *scopeEntry
		scope := ""
		if len(stack) > 0 {
			container = &stack[len(stack)-1]
			scope = container.scope
		}

		if def.scopeOnly {
			stack = append(stack, scopeEntry{
				end:       def.end,
				scope:     parser.JoinFQN(scope, def.name),
				symbol:    -1,
				typeScope: true,
			})
			continue
		}

		kind := def.kind
		parent := ""
		switch {
		case def.owner != "":
			scope = parser.JoinFQN(scope, def.owner)
			pendingParents[len(symbols)] = scope
		case container != nil && container.symbol >= 0:
			parent = symbols[container.symbol].FQN
		case container != nil:
			pendingParents[len(symbols)] = scope
		}
		if kind == parser.SymbolFunction && (def.owner != "" || (container != nil && container.typeScope)) {
			kind = parser.SymbolMethod
		}

		startLine, endLine := lineRange(def.node)
		fqn := parser.JoinFQN(scope, def.name)
		if used[fqn] {
			fqn = parser.WithLine(fqn, startLine)
			if used[fqn] {
				b.skipped++
				continue
			}
		}
		used[fqn] = true

		symbols = append(symbols, parser.Symbol{
			FQN:       fqn,
			Name:      lastSegment(def.name),
			Kind:      kind,
			File:      b.path,
			StartLine: startLine,
			EndLine:   endLine,
			Parent:    parent,
			Signature: signatureOf(def.node, b.src),
		})
		ranges = append(ranges, [2]uint32{def.start, def.end})

		stack = append(stack, scopeEntry{
			end:       def.end,
			scope:     fqn,
			symbol:    len(symbols) - 1,
			typeScope: kind.IsType(),
		})
	}

	// Owners named by @parent or impl blocks become parents only when the
	// owning type is declared in this file.
	for idx, scope := range pendingParents {
		if used[scope] && scope != symbols[idx].FQN {
			symbols[idx].Parent = scope
		}
	}

	edges := b.buildEdges(symbols, ranges)

	sort.SliceStable(symbols, func(i, j int) bool {
		if symbols[i].StartLine != symbols[j].StartLine {
			return symbols[i].StartLine < symbols[j].StartLine
		}
		if symbols[i].EndLine != symbols[j].EndLine {
			return symbols[i].EndLine > symbols[j].EndLine
		}
		return symbols[i].FQN < symbols[j].FQN
	})

	return &parser.FileSymbols{
		Path:    b.path,
		Symbols: symbols,
		Edges:   edges,
		Imports: b.imports,
		Skipped: b.skipped,
	}
}

func (b *fileBuilder) buildEdges(symbols []parser.Symbol, ranges [][2]uint32) []parser.Edge {
	edges := make([]parser.Edge, 0, len(b.refs))
	seen := make(map[parser.Edge]bool, len(b.refs))

	for _, ref := range b.refs {
		if b.defNames[ref.offset] {
			continue
		}
		edge := parser.Edge{
			Source:     b.sourceFor(ref, symbols, ranges),
			TargetName: lastSegment(ref.name),
			Qualifier:  ref.qualifier,
			Type:       ref.edgeType,
			File:       b.path,
			Line:       ref.line,
			Column:     ref.column,
		}
		if seen[edge] {
			continue
		}
		seen[edge] = true
		edges = append(edges, edge)
	}

	sort.Slice(edges, func(i, j int) bool {
		a, c := edges[i], edges[j]
		if a.Line != c.Line {
			return a.Line < c.Line
		}
		if a.Column != c.Column {
			return a.Column < c.Column
		}
		if a.Type != c.Type {
			return a.Type < c.Type
		}
		if a.TargetName != c.TargetName {
			return a.TargetName < c.TargetName
		}
		return a.Source < c.Source
	})
	return edges
}

// sourceFor picks the innermost symbol enclosing the reference, or the type
// named by @source. References outside every symbol belong to the file.
func (b *fileBuilder) sourceFor(ref reference, symbols []parser.Symbol, ranges [][2]uint32) string {
	best := -1
	named := -1
	for i := range symbols {
		r := ranges[i]
		if ref.owner != "" && symbols[i].Name == ref.owner && symbols[i].Kind.IsType() {
			if named == -1 || (r[0] <= ref.offset && ref.offset < r[1]) {
				named = i
			}
		}
		if r[0] <= ref.offset && ref.offset < r[1] {
			if best == -1 || r[1]-r[0] < ranges[best][1]-ranges[best][0] {
				best = i
			}
		}
	}
	switch {
	case named != -1:
		return symbols[named].FQN
	case best != -1:
		return symbols[best].FQN
	default:
		return b.path
	}
}

func lineRange(node *sitter.Node) (int, int) {
	start := node.StartPoint()
	end := node.EndPoint()
	startLine := int(start.Row) + 1
	endLine := int(end.Row) + 1
	if end.Column == 0 && endLine > startLine {
		endLine--
	}
	return startLine, endLine
}

// signatureOf returns the declaration text up to the body, or the first line
// when the node has no body field.
func signatureOf(node *sitter.Node, src []byte) string {
	start := node.StartByte()
	end := node.EndByte()
	body := node.ChildByFieldName("body")
	if body != nil && body.StartByte() > start {
		end = body.StartByte()
	}
	text := string(src[start:end])
	if body == nil {
		if idx := strings.IndexByte(text, '\n'); idx != -1 {
			text = text[:idx]
		}
	}
	text = compact(text, maxSignatureLength)
	text = strings.TrimSuffix(text, "{")
	text = strings.TrimSuffix(text, ":")
	return strings.TrimSpace(text)
}

func compact(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > limit {
		text = strings.TrimSpace(text[:limit])
	}
	return text
}

// normalizeScope rewrites C++/Rust path separators to the FQN separator.
func normalizeScope(name string) string {
	return strings.ReplaceAll(name, "::", ".")
}

func lastSegment(name string) string {
	if idx := strings.LastIndex(name, "."); idx != -1 {
		return name[idx+1:]
	}
	return name
}
