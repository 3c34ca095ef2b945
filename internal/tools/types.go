package tools

import (
	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/parser"
)

// Tool names as exposed to clients.
const (
	AnalyzeCode              = "analyze_code"
	FindSymbolReferences     = "find_symbol_references"
	FindSymbolDefinitions    = "find_symbol_definitions"
	GetSymbolSubgraph        = "get_symbol_subgraph"
	GetMultipleFilesSkeleton = "get_multiple_files_skeleton"
	GetRelatedFilesSkeleton  = "get_related_files_skeleton"
	UpdateCodeGraph          = "update_code_graph"
	GetCodeGraph             = "get_code_graph"
	SearchSymbols            = "search_symbols"
)

// Argument limits and defaults.
const (
	DefaultSubgraphDepth = 2
	MaxSubgraphDepth     = 5
	DefaultMaxTokens     = 4000
	MinTokens            = 1
	DefaultRelatedDepth  = 3
	MaxRelatedDepth      = 10
	DefaultSearchLimit   = 10
	MaxSearchLimit       = 100
)

var descriptions = map[string]string{
	AnalyzeCode:              "Lists the symbols declared in one file: name, kind, line range and parent.",
	FindSymbolReferences:     "Finds every call or reference site of a symbol by name, optionally restricted to a directory.",
	FindSymbolDefinitions:    "Finds where a symbol is defined. Ambiguous names return every candidate.",
	GetSymbolSubgraph:        "Returns the symbols within max_depth hops of a symbol, following edges in both directions.",
	GetMultipleFilesSkeleton: "Renders signature-only skeletons of files within a token budget; bodies are replaced with '...'.",
	GetRelatedFilesSkeleton:  "Renders skeletons of the given files and of the files their symbols are connected to, closest first.",
	UpdateCodeGraph:          "Re-indexes files changed since the last scan, or scans a new root.",
	GetCodeGraph:             "Returns the node and edge lists of the indexed repository, optionally filtered by path globs.",
	SearchSymbols:            "Ranked fuzzy search over symbol names, signatures and paths.",
}

// Description returns the client-facing description of a tool.
func Description(name string) string {
	return descriptions[name]
}

type AnalyzeCodeArgs struct {
	FilePath string `json:"file_path" jsonschema:"path of the file to analyze, absolute or relative to the indexed root"`
}

type FindReferencesArgs struct {
	SymbolName string `json:"symbol_name" jsonschema:"name or fully qualified name of the symbol"`
	SymbolType string `json:"symbol_type,omitempty" jsonschema:"optional kind filter: function, method, class, struct, interface, enum, module, variable"`
	Directory  string `json:"directory,omitempty" jsonschema:"only report references in files under this directory"`
}

type FindDefinitionsArgs struct {
	SymbolName string `json:"symbol_name" jsonschema:"name or fully qualified name of the symbol"`
	SymbolType string `json:"symbol_type,omitempty" jsonschema:"optional kind filter"`
}

type SubgraphArgs struct {
	SymbolName string `json:"symbol_name" jsonschema:"seed symbol name or fully qualified name"`
	MaxDepth   *int   `json:"max_depth,omitempty" jsonschema:"hops to follow, 1 to 5, default 2"`
	Depth      *int   `json:"depth,omitempty" jsonschema:"alias of max_depth"`
}

type FilesSkeletonArgs struct {
	FilePaths []string `json:"file_paths" jsonschema:"files to render, in priority order"`
	MaxTokens *int     `json:"max_tokens,omitempty" jsonschema:"token budget, at least 1, default 4000; a budget too small for one symbol yields only a truncation marker"`
}

type RelatedSkeletonArgs struct {
	ActiveFiles []string `json:"active_files" jsonschema:"files the related set is computed from"`
	MaxTokens   *int     `json:"max_tokens,omitempty" jsonschema:"token budget, at least 1, default 4000; a budget too small for one symbol yields only a truncation marker"`
	MaxDepth    *int     `json:"max_depth,omitempty" jsonschema:"hops to follow, 1 to 10, default 3"`
}

type UpdateArgs struct {
	RootPath  string `json:"root_path,omitempty" jsonschema:"repository root; a different root than the indexed one triggers a fresh scan"`
	Directory string `json:"directory,omitempty" jsonschema:"alias of root_path"`
}

type CodeGraphArgs struct {
	RootPath        string   `json:"root_path,omitempty" jsonschema:"repository root, defaults to the indexed root"`
	Directory       string   `json:"directory,omitempty" jsonschema:"alias of root_path"`
	IncludeFiles    []string `json:"include_files,omitempty" jsonschema:"only report files matching these globs"`
	ExcludePatterns []string `json:"exclude_patterns,omitempty" jsonschema:"drop files matching these gitignore-style patterns"`
}

type SearchArgs struct {
	Query string `json:"query" jsonschema:"free text, matched against names, signatures and paths"`
	Limit *int   `json:"limit,omitempty" jsonschema:"maximum results, 1 to 100, default 10"`
}

type SymbolInfo struct {
	FQN        string `json:"fqn"`
	Name       string `json:"name"`
	SymbolType string `json:"symbol_type"`
	FilePath   string `json:"file_path"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	Parent     string `json:"parent,omitempty"`
	Signature  string `json:"signature,omitempty"`
}

type ReferenceInfo struct {
	FilePath      string `json:"file_path"`
	Line          int    `json:"line"`
	Column        int    `json:"column"`
	ReferenceType string `json:"reference_type"`
	Source        string `json:"source,omitempty"`
	Target        string `json:"target,omitempty"`
	Resolved      bool   `json:"resolved"`
}

type NodeInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SymbolType string `json:"symbol_type"`
	FilePath   string `json:"file_path"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	Parent     string `json:"parent,omitempty"`
	Depth      int    `json:"depth,omitempty"`
}

type EdgeInfo struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	EdgeType string `json:"edge_type"`
}

type AnalyzeResult struct {
	FilePath string       `json:"file_path"`
	Language string       `json:"language,omitempty"`
	Symbols  []SymbolInfo `json:"symbols"`
	Imports  []string     `json:"imports,omitempty"`
	Skipped  int          `json:"skipped,omitempty"`
	Error    string       `json:"error,omitempty"`
}

type ReferencesResult struct {
	SymbolName string          `json:"symbol_name"`
	References []ReferenceInfo `json:"references"`
}

type DefinitionsResult struct {
	SymbolName  string       `json:"symbol_name"`
	Definitions []SymbolInfo `json:"definitions"`
	Suggestions []string     `json:"suggestions,omitempty"`
}

type SubgraphResult struct {
	SymbolName string     `json:"symbol_name"`
	MaxDepth   int        `json:"max_depth"`
	Nodes      []NodeInfo `json:"nodes"`
	Edges      []EdgeInfo `json:"edges"`
}

type UpdateResult struct {
	Status        string              `json:"status"`
	RunID         string              `json:"run_id"`
	RootPath      string              `json:"root_path"`
	Generation    uint64              `json:"generation"`
	FilesScanned  int                 `json:"files_scanned"`
	FilesReparsed int                 `json:"files_reparsed"`
	FilesRemoved  int                 `json:"files_removed"`
	SymbolsFound  int                 `json:"symbols_found"`
	Edges         int                 `json:"edges"`
	Unresolved    int                 `json:"unresolved"`
	Promoted      int                 `json:"promoted_edges,omitempty"`
	Pruned        int                 `json:"pruned_edges,omitempty"`
	Issues        []parser.ParseIssue `json:"issues,omitempty"`
}

type CodeGraphResult struct {
	RootPath   string      `json:"root_path"`
	Generation uint64      `json:"generation"`
	Stats      graph.Stats `json:"stats"`
	Nodes      []NodeInfo  `json:"nodes"`
	Edges      []EdgeInfo  `json:"edges"`
}

type SearchHit struct {
	SymbolInfo
	Score float64 `json:"score"`
}

type SearchResult struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

func symbolInfo(sym parser.Symbol) SymbolInfo {
	return SymbolInfo{
		FQN:        sym.FQN,
		Name:       sym.Name,
		SymbolType: sym.Kind.DisplayName(),
		FilePath:   sym.File,
		StartLine:  sym.StartLine,
		EndLine:    sym.EndLine,
		Parent:     sym.Parent,
		Signature:  sym.Signature,
	}
}

func nodeInfo(sym parser.Symbol, depth int) NodeInfo {
	return NodeInfo{
		ID:         sym.FQN,
		Name:       sym.Name,
		SymbolType: sym.Kind.DisplayName(),
		FilePath:   sym.File,
		StartLine:  sym.StartLine,
		EndLine:    sym.EndLine,
		Parent:     sym.Parent,
		Depth:      depth,
	}
}

func edgeInfo(edge parser.Edge) EdgeInfo {
	return EdgeInfo{Source: edge.Source, Target: edge.Target, EdgeType: edge.Type.String()}
}

func referenceInfo(edge parser.Edge) ReferenceInfo {
	return ReferenceInfo{
		FilePath:      edge.File,
		Line:          edge.Line,
		Column:        edge.Column,
		ReferenceType: edge.Type.String(),
		Source:        edge.Source,
		Target:        edge.Target,
		Resolved:      edge.Resolved(),
	}
}
