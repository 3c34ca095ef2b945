package nav

import (
	"errors"
	"fmt"
	"sort"

	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/parser"
)

// ErrInvalidDepth is returned for a traversal depth below one.
var ErrInvalidDepth = errors.New("depth must be at least 1")

// Neighbour is a symbol adjacent to another over the strongest edge type
// linking them.
type Neighbour struct {
	FQN  string
	Type parser.EdgeType
}

// ExtractSubgraph walks resolved edges in both directions from every symbol
// the seed query names, up to maxDepth hops. Within a level, neighbours are
// visited in (edge type, FQN) order so repeated runs discover nodes in the
// same order. An unknown seed yields an empty subgraph.
func ExtractSubgraph(snap *graph.Snapshot, seed string, maxDepth int) (*Subgraph, error) {
	if maxDepth < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDepth, maxDepth)
	}

	sub := &Subgraph{Depth: make(map[string]int)}
	seeds := Resolve(snap, seed)
	sort.Slice(seeds, func(i, j int) bool {
		return seeds[i].FQN < seeds[j].FQN
	})

	frontier := make([]string, 0, len(seeds))
	for _, sym := range seeds {
		sub.Seeds = append(sub.Seeds, sym.FQN)
		sub.Nodes = append(sub.Nodes, sym)
		sub.Depth[sym.FQN] = 0
		frontier = append(frontier, sym.FQN)
	}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, fqn := range frontier {
			for _, n := range Neighbours(snap, fqn) {
				if _, visited := sub.Depth[n.FQN]; visited {
					continue
				}
				sub.Depth[n.FQN] = depth
				sub.Nodes = append(sub.Nodes, *snap.Symbols[n.FQN])
				next = append(next, n.FQN)
			}
		}
		sort.Strings(next)
		frontier = next
	}

	sub.Edges = inducedEdges(snap, sub.Depth)
	return sub, nil
}

// Neighbours returns the symbols adjacent to fqn over resolved edges in
// either direction, ordered by edge type priority and then FQN. File-scope
// endpoints are not symbols and are skipped.
func Neighbours(snap *graph.Snapshot, fqn string) []Neighbour {
	best := make(map[string]parser.EdgeType)
	consider := func(other string, edgeType parser.EdgeType) {
		if other == fqn {
			return
		}
		if _, ok := snap.Symbols[other]; !ok {
			return
		}
		if current, ok := best[other]; !ok || edgeType < current {
			best[other] = edgeType
		}
	}
	for _, edge := range snap.Outgoing(fqn) {
		if edge.Resolved() {
			consider(edge.Target, edge.Type)
		}
	}
	for _, edge := range snap.Incoming(fqn) {
		consider(edge.Source, edge.Type)
	}

	out := make([]Neighbour, 0, len(best))
	for other, edgeType := range best {
		out = append(out, Neighbour{FQN: other, Type: edgeType})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].FQN < out[j].FQN
	})
	return out
}

// inducedEdges returns one edge per (source, target, type) among nodes.
func inducedEdges(snap *graph.Snapshot, nodes map[string]int) []parser.Edge {
	type key struct {
		source, target string
		edgeType       parser.EdgeType
	}
	seen := make(map[key]bool)
	out := make([]parser.Edge, 0)
	for _, edge := range snap.Edges {
		if !edge.Resolved() {
			continue
		}
		if _, ok := nodes[edge.Source]; !ok {
			continue
		}
		if _, ok := nodes[edge.Target]; !ok {
			continue
		}
		k := key{edge.Source, edge.Target, edge.Type}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, edge)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}
