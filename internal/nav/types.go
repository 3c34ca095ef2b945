package nav

import "github.com/skelly-dev/codegraph/internal/parser"

// EdgeRecord is a neighbouring symbol together with the edge that links it.
type EdgeRecord struct {
	Symbol parser.Symbol `json:"symbol"`
	Edge   parser.Edge   `json:"edge"`
}

// Subgraph is the neighbourhood of one or more seed symbols. Nodes are in
// discovery order; Depth holds each node's distance from the nearest seed.
type Subgraph struct {
	Seeds []string        `json:"seeds"`
	Nodes []parser.Symbol `json:"nodes"`
	Edges []parser.Edge   `json:"edges"`
	Depth map[string]int  `json:"depth"`
}
