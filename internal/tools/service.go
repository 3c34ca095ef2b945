package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/ignore"
	"github.com/skelly-dev/codegraph/internal/nav"
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/skelly-dev/codegraph/internal/search"
	"github.com/skelly-dev/codegraph/internal/skeleton"
	"github.com/skelly-dev/codegraph/internal/state"
)

// Persister stores the mapper state after the graph changes.
type Persister interface {
	Save(ctx context.Context, st *state.State) error
}

// Options configures a Service.
type Options struct {
	// Root is scanned on first use when no scan has happened yet.
	Root             string
	DefaultMaxTokens int
	DefaultDepth     int
	Persister        Persister
	Logger           *slog.Logger
}

// Service implements the tool operations over one mapper. Every read
// operation pins the snapshot current at entry.
type Service struct {
	mapper    *graph.Mapper
	skeletons *skeleton.Service
	opts      Options
	logger    *slog.Logger

	mu    sync.Mutex
	index *search.Index
}

func New(mapper *graph.Mapper, opts Options) *Service {
	if opts.DefaultMaxTokens < MinTokens {
		opts.DefaultMaxTokens = DefaultMaxTokens
	}
	if opts.DefaultDepth < 1 || opts.DefaultDepth > MaxSubgraphDepth {
		opts.DefaultDepth = DefaultSubgraphDepth
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		mapper:    mapper,
		skeletons: skeleton.NewService(mapper, mapper.Pool(), mapper.Extractor()),
		opts:      opts,
		logger:    logger,
	}
}

// Names lists every tool name, sorted.
func Names() []string {
	names := make([]string, 0, len(descriptions))
	for name := range descriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call decodes raw into the argument type of the named tool and runs it.
func (s *Service) Call(ctx context.Context, name string, raw json.RawMessage) (any, error) {
	switch name {
	case AnalyzeCode:
		return dispatch(ctx, raw, s.AnalyzeCode)
	case FindSymbolReferences:
		return dispatch(ctx, raw, s.FindReferences)
	case FindSymbolDefinitions:
		return dispatch(ctx, raw, s.FindDefinitions)
	case GetSymbolSubgraph:
		return dispatch(ctx, raw, s.Subgraph)
	case GetMultipleFilesSkeleton:
		return dispatch(ctx, raw, s.FilesSkeleton)
	case GetRelatedFilesSkeleton:
		return dispatch(ctx, raw, s.RelatedSkeleton)
	case UpdateCodeGraph:
		return dispatch(ctx, raw, s.Update)
	case GetCodeGraph:
		return dispatch(ctx, raw, s.CodeGraph)
	case SearchSymbols:
		return dispatch(ctx, raw, s.Search)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}

func dispatch[A, R any](ctx context.Context, raw json.RawMessage, run func(context.Context, A) (R, error)) (any, error) {
	var args A
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&args); err != nil {
			return nil, &ArgumentError{Field: "arguments", Reason: err.Error()}
		}
	}
	return run(ctx, args)
}

// snapshot returns the current generation, scanning the configured root
// first when nothing has been indexed yet.
func (s *Service) snapshot(ctx context.Context) (*graph.Snapshot, error) {
	if !s.mapper.Scanned() && s.opts.Root != "" {
		if _, err := s.scan(ctx, s.opts.Root); err != nil {
			return nil, err
		}
	}
	return s.mapper.Snapshot(), nil
}

func (s *Service) AnalyzeCode(ctx context.Context, args AnalyzeCodeArgs) (*AnalyzeResult, error) {
	if args.FilePath == "" {
		return nil, missing("file_path")
	}
	if _, err := s.snapshot(ctx); err != nil {
		return nil, err
	}

	analysis, err := s.skeletons.AnalyzeFile(ctx, args.FilePath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &AnalyzeResult{
			FilePath: s.mapper.Snapshot().Rel(args.FilePath),
			Symbols:  []SymbolInfo{},
			Error:    err.Error(),
		}, nil
	}

	out := &AnalyzeResult{
		FilePath: analysis.Path,
		Language: analysis.Language,
		Symbols:  make([]SymbolInfo, 0, len(analysis.Symbols)),
		Imports:  analysis.Imports,
		Skipped:  analysis.Skipped,
	}
	for _, sym := range analysis.Symbols {
		out.Symbols = append(out.Symbols, symbolInfo(sym))
	}
	return out, nil
}

func (s *Service) FindReferences(ctx context.Context, args FindReferencesArgs) (*ReferencesResult, error) {
	if args.SymbolName == "" {
		return nil, missing("symbol_name")
	}
	kind, err := kindArg(args.SymbolType)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	dir := ""
	if args.Directory != "" {
		dir = snap.Rel(args.Directory)
	}
	edges := nav.FindReferences(snap, args.SymbolName, kind, dir)
	out := &ReferencesResult{SymbolName: args.SymbolName, References: make([]ReferenceInfo, 0, len(edges))}
	for _, edge := range edges {
		out.References = append(out.References, referenceInfo(edge))
	}
	return out, nil
}

func (s *Service) FindDefinitions(ctx context.Context, args FindDefinitionsArgs) (*DefinitionsResult, error) {
	if args.SymbolName == "" {
		return nil, missing("symbol_name")
	}
	kind, err := kindArg(args.SymbolType)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	definitions := nav.FindDefinitions(snap, args.SymbolName, kind)
	out := &DefinitionsResult{SymbolName: args.SymbolName, Definitions: make([]SymbolInfo, 0, len(definitions))}
	for _, sym := range definitions {
		out.Definitions = append(out.Definitions, symbolInfo(sym))
	}
	if len(definitions) == 0 {
		for _, hit := range search.Search(s.searchIndex(snap), args.SymbolName, 5) {
			out.Suggestions = append(out.Suggestions, hit.FQN)
		}
	}
	return out, nil
}

func (s *Service) Subgraph(ctx context.Context, args SubgraphArgs) (*SubgraphResult, error) {
	if args.SymbolName == "" {
		return nil, missing("symbol_name")
	}
	depth, err := intArg("max_depth", args.MaxDepth, args.Depth, s.opts.DefaultDepth, 1, MaxSubgraphDepth)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	sub, err := nav.ExtractSubgraph(snap, args.SymbolName, depth)
	if err != nil {
		return nil, err
	}
	out := &SubgraphResult{
		SymbolName: args.SymbolName,
		MaxDepth:   depth,
		Nodes:      make([]NodeInfo, 0, len(sub.Nodes)),
		Edges:      make([]EdgeInfo, 0, len(sub.Edges)),
	}
	for _, sym := range sub.Nodes {
		out.Nodes = append(out.Nodes, nodeInfo(sym, sub.Depth[sym.FQN]))
	}
	for _, edge := range sub.Edges {
		out.Edges = append(out.Edges, edgeInfo(edge))
	}
	return out, nil
}

func (s *Service) FilesSkeleton(ctx context.Context, args FilesSkeletonArgs) (*skeleton.Result, error) {
	if len(args.FilePaths) == 0 {
		return nil, missing("file_paths")
	}
	tokens, err := intArg("max_tokens", args.MaxTokens, nil, s.opts.DefaultMaxTokens, MinTokens, math.MaxInt)
	if err != nil {
		return nil, err
	}
	if _, err := s.snapshot(ctx); err != nil {
		return nil, err
	}
	return s.skeletons.Skeleton(ctx, args.FilePaths, tokens)
}

func (s *Service) RelatedSkeleton(ctx context.Context, args RelatedSkeletonArgs) (*skeleton.Result, error) {
	if len(args.ActiveFiles) == 0 {
		return nil, missing("active_files")
	}
	tokens, err := intArg("max_tokens", args.MaxTokens, nil, s.opts.DefaultMaxTokens, MinTokens, math.MaxInt)
	if err != nil {
		return nil, err
	}
	depth, err := intArg("max_depth", args.MaxDepth, nil, DefaultRelatedDepth, 1, MaxRelatedDepth)
	if err != nil {
		return nil, err
	}
	if _, err := s.snapshot(ctx); err != nil {
		return nil, err
	}
	return s.skeletons.RelatedSkeleton(ctx, args.ActiveFiles, tokens, depth)
}

// Update refreshes the graph. A root other than the indexed one, or a
// first call, runs a full scan; otherwise only changed files are re-parsed.
func (s *Service) Update(ctx context.Context, args UpdateArgs) (*UpdateResult, error) {
	root, err := s.rootArg(args.RootPath, args.Directory)
	if err != nil {
		return nil, err
	}

	if !s.mapper.Scanned() || root != s.mapper.Root() {
		summary, err := s.scan(ctx, root)
		if err != nil {
			return nil, err
		}
		return &UpdateResult{
			Status:        "scanned",
			RunID:         summary.RunID,
			RootPath:      summary.Root,
			Generation:    summary.Generation,
			FilesScanned:  summary.Files,
			FilesReparsed: summary.Files,
			SymbolsFound:  summary.Symbols,
			Edges:         summary.Edges,
			Unresolved:    summary.Unresolved,
			Issues:        summary.Issues,
		}, nil
	}

	summary, err := s.mapper.Update(ctx)
	if err != nil {
		return nil, err
	}
	status := "unchanged"
	if summary.Changed() {
		status = "updated"
		s.persist(ctx)
	}
	return &UpdateResult{
		Status:        status,
		RunID:         summary.RunID,
		RootPath:      summary.Root,
		Generation:    summary.Generation,
		FilesScanned:  summary.Scanned,
		FilesReparsed: len(summary.Reparsed),
		FilesRemoved:  len(summary.Removed),
		SymbolsFound:  summary.Symbols,
		Edges:         summary.Edges,
		Unresolved:    summary.Unresolved,
		Promoted:      summary.Promoted,
		Pruned:        summary.Pruned,
		Issues:        summary.Issues,
	}, nil
}

// CodeGraph returns every node and every resolved symbol-to-symbol edge,
// restricted to files accepted by the include and exclude globs.
func (s *Service) CodeGraph(ctx context.Context, args CodeGraphArgs) (*CodeGraphResult, error) {
	root, err := s.rootArg(args.RootPath, args.Directory)
	if err != nil {
		return nil, err
	}
	if !s.mapper.Scanned() || root != s.mapper.Root() {
		if _, err := s.scan(ctx, root); err != nil {
			return nil, err
		}
	}
	snap := s.mapper.Snapshot()

	filter := ignore.NewFilter(ignore.NewRules(nil), args.IncludeFiles, args.ExcludePatterns)
	accepted := make(map[string]bool)
	out := &CodeGraphResult{
		RootPath:   snap.Root,
		Generation: snap.Generation,
		Nodes:      []NodeInfo{},
		Edges:      []EdgeInfo{},
	}
	for _, file := range snap.Paths() {
		if !filter.Accept(file) {
			continue
		}
		accepted[file] = true
		out.Stats.Files++
		for _, sym := range snap.FileSymbols(file) {
			out.Nodes = append(out.Nodes, nodeInfo(sym, 0))
		}
	}
	for _, edge := range snap.Edges {
		if !edge.Resolved() {
			if accepted[edge.File] {
				out.Stats.Unresolved++
			}
			continue
		}
		source, ok := snap.Symbols[edge.Source]
		if !ok || !accepted[source.File] || !accepted[snap.Symbols[edge.Target].File] {
			continue
		}
		out.Edges = append(out.Edges, edgeInfo(edge))
	}
	out.Stats.Symbols = len(out.Nodes)
	out.Stats.Edges = len(out.Edges)
	for file := range accepted {
		if snap.Files[file].Failure != "" {
			out.Stats.Failed++
		}
	}
	return out, nil
}

func (s *Service) Search(ctx context.Context, args SearchArgs) (*SearchResult, error) {
	if args.Query == "" {
		return nil, missing("query")
	}
	limit, err := intArg("limit", args.Limit, nil, DefaultSearchLimit, 1, MaxSearchLimit)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	out := &SearchResult{Query: args.Query, Results: []SearchHit{}}
	for _, hit := range search.Search(s.searchIndex(snap), args.Query, limit) {
		sym, ok := snap.Symbol(hit.FQN)
		if !ok {
			continue
		}
		out.Results = append(out.Results, SearchHit{SymbolInfo: symbolInfo(sym), Score: hit.Score})
	}
	return out, nil
}

// searchIndex returns the index for snap's generation, rebuilding it when
// the graph has moved on.
func (s *Service) searchIndex(snap *graph.Snapshot) *search.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil || s.index.Generation != snap.Generation {
		s.index = search.Build(snap)
	}
	return s.index
}

func (s *Service) scan(ctx context.Context, root string) (*graph.ScanSummary, error) {
	summary, err := s.mapper.Scan(ctx, root, nil, nil)
	if err != nil {
		return nil, err
	}
	s.persist(ctx)
	return summary, nil
}

func (s *Service) persist(ctx context.Context) {
	if s.opts.Persister == nil {
		return
	}
	st, err := s.mapper.ExportState()
	if err != nil {
		return
	}
	if err := s.opts.Persister.Save(ctx, st); err != nil {
		s.logger.Warn("persist graph state", "error", err)
	}
}

// rootArg resolves the requested root: the argument, its alias, the indexed
// root, then the configured one. The result is an absolute directory.
func (s *Service) rootArg(primary, alias string) (string, error) {
	root := primary
	for _, candidate := range []string{alias, s.mapper.Root(), s.opts.Root} {
		if root != "" {
			break
		}
		root = candidate
	}
	if root == "" {
		return "", missing("root_path")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", &ArgumentError{Field: "root_path", Reason: err.Error()}
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &ArgumentError{Field: "root_path", Reason: "does not exist: " + abs}
		}
		return "", &ArgumentError{Field: "root_path", Reason: err.Error()}
	}
	if !info.IsDir() {
		return "", &ArgumentError{Field: "root_path", Reason: "not a directory: " + abs}
	}
	return abs, nil
}

func kindArg(value string) (*parser.SymbolKind, error) {
	if value == "" {
		return nil, nil
	}
	kind, ok := parser.ParseSymbolKind(value)
	if !ok {
		return nil, &ArgumentError{Field: "symbol_type", Reason: fmt.Sprintf("unknown symbol kind %q", value)}
	}
	return &kind, nil
}
