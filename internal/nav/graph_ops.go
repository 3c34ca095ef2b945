package nav

import (
	"sort"

	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/parser"
)

// CollectCallers returns the symbols with a resolved call into fqn, one
// record per caller at its first call site.
func CollectCallers(snap *graph.Snapshot, fqn string) []EdgeRecord {
	out := make([]EdgeRecord, 0)
	seen := make(map[string]bool)
	for _, edge := range snap.Incoming(fqn) {
		if edge.Type != parser.EdgeCall || seen[edge.Source] {
			continue
		}
		caller, ok := snap.Symbol(edge.Source)
		if !ok {
			continue
		}
		seen[edge.Source] = true
		out = append(out, EdgeRecord{Symbol: caller, Edge: edge})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Symbol.FQN < out[j].Symbol.FQN
	})
	return out
}

// CollectCallees returns the symbols fqn calls, one record per callee.
func CollectCallees(snap *graph.Snapshot, fqn string) []EdgeRecord {
	out := make([]EdgeRecord, 0)
	seen := make(map[string]bool)
	for _, edge := range snap.Outgoing(fqn) {
		if edge.Type != parser.EdgeCall || !edge.Resolved() || seen[edge.Target] {
			continue
		}
		seen[edge.Target] = true
		out = append(out, EdgeRecord{Symbol: *snap.Symbols[edge.Target], Edge: edge})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Symbol.FQN < out[j].Symbol.FQN
	})
	return out
}

// ShortestPath follows resolved outgoing edges from one symbol to another
// and returns the FQNs on the shortest path, or nil when there is none.
func ShortestPath(snap *graph.Snapshot, fromID, toID string) []string {
	if fromID == toID {
		return []string{fromID}
	}

	queue := []string{fromID}
	visited := map[string]bool{fromID: true}
	parent := map[string]string{}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, nextID := range resolvedTargets(snap, current) {
			if visited[nextID] {
				continue
			}
			visited[nextID] = true
			parent[nextID] = current
			if nextID == toID {
				return ReconstructPath(parent, fromID, toID)
			}
			queue = append(queue, nextID)
		}
	}

	return nil
}

func resolvedTargets(snap *graph.Snapshot, fqn string) []string {
	out := make([]string, 0)
	for _, edge := range snap.Outgoing(fqn) {
		if edge.Resolved() {
			out = append(out, edge.Target)
		}
	}
	sort.Strings(out)
	return out
}

func ReconstructPath(parent map[string]string, fromID, toID string) []string {
	out := []string{toID}
	for current := toID; current != fromID; {
		prev, ok := parent[current]
		if !ok {
			return nil
		}
		out = append(out, prev)
		current = prev
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
