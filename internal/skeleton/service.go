package skeleton

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/skelly-dev/codegraph/internal/extract"
	"github.com/skelly-dev/codegraph/internal/fileutil"
	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/parser"
)

var (
	// ErrBudgetExceeded is reported as the reason of a result whose budget
	// could not hold a single symbol. It is never returned as an error.
	ErrBudgetExceeded = errors.New("token budget too small for any symbol")

	ErrInvalidBudget = errors.New("max tokens must be positive")
	ErrInvalidDepth  = errors.New("max depth must be at least 1")
)

// FileSkeleton is the rendered skeleton of one file.
type FileSkeleton struct {
	Path      string `json:"file_path"`
	Language  string `json:"language,omitempty"`
	Content   string `json:"content"`
	Symbols   int    `json:"symbols"`
	Omitted   int    `json:"omitted,omitempty"`
	Tokens    int    `json:"tokens"`
	Depth     int    `json:"depth,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Result is the outcome of one skeleton request. Files keeps request order;
// files past the truncation point are listed with empty content.
type Result struct {
	Files       []FileSkeleton `json:"files"`
	TotalTokens int            `json:"total_tokens"`
	Truncated   bool           `json:"truncated"`
	Reason      string         `json:"reason,omitempty"`
	Related     []string       `json:"related_files,omitempty"`
}

// FileAnalysis lists the symbols declared directly in one file.
type FileAnalysis struct {
	Path     string
	Language string
	Symbols  []parser.Symbol
	Imports  []string
	Skipped  int
	HasError bool
	Indexed  bool
}

// SnapshotSource hands out the current graph generation.
type SnapshotSource interface {
	Snapshot() *graph.Snapshot
}

// Service renders skeletons from the current snapshot. It holds no state
// between calls; each call pins the snapshot it was handed at entry.
type Service struct {
	source    SnapshotSource
	pool      *parser.Pool
	extractor *extract.Extractor
}

func NewService(source SnapshotSource, pool *parser.Pool, extractor *extract.Extractor) *Service {
	if extractor == nil {
		extractor = extract.New(pool)
	}
	return &Service{source: source, pool: pool, extractor: extractor}
}

// AnalyzeFile returns the symbols declared in path. Indexed files are served
// from the snapshot; anything else is parsed on demand without touching the
// parser cache.
func (s *Service) AnalyzeFile(ctx context.Context, path string) (*FileAnalysis, error) {
	return s.analyze(ctx, s.source.Snapshot(), path)
}

func (s *Service) analyze(ctx context.Context, snap *graph.Snapshot, path string) (*FileAnalysis, error) {
	rel := snap.Rel(path)
	if entry, ok := snap.Files[rel]; ok {
		if entry.Failure != "" {
			return nil, fmt.Errorf("%w: %s", parser.ErrParse, entry.Failure)
		}
		return &FileAnalysis{
			Path:     rel,
			Language: entry.Language,
			Symbols:  snap.FileSymbols(rel),
			Imports:  entry.Imports,
			Skipped:  entry.Skipped,
			HasError: entry.HasError,
			Indexed:  true,
		}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs := path
	if !filepath.IsAbs(abs) && snap.Root != "" {
		abs = filepath.Join(snap.Root, filepath.FromSlash(path))
	}
	contents, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	tree, err := s.pool.ParseDetached(ctx, rel, contents)
	if err != nil {
		return nil, err
	}
	defer tree.Tree.Close()

	file, err := s.extractor.Extract(tree)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", parser.ErrExtraction, rel, err)
	}
	return &FileAnalysis{
		Path:     rel,
		Language: file.Language,
		Symbols:  file.Symbols,
		Imports:  file.Imports,
		Skipped:  file.Skipped,
		HasError: file.HasError,
	}, nil
}

// Skeleton renders files in the given order until maxTokens is spent.
// Duplicate paths are rendered once. A file that cannot be read or parsed
// contributes an error marker instead of failing the batch.
func (s *Service) Skeleton(ctx context.Context, files []string, maxTokens int) (*Result, error) {
	if maxTokens < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBudget, maxTokens)
	}
	snap := s.source.Snapshot()

	rels := make([]string, 0, len(files))
	for _, file := range files {
		rels = append(rels, snap.Rel(file))
	}
	rels = fileutil.DedupeStrings(rels)

	targets := make([]target, 0, len(rels))
	for _, rel := range rels {
		targets = append(targets, target{path: rel})
	}
	return s.render(ctx, snap, targets, maxTokens)
}

// RelatedSkeleton renders the active files followed by every file reached by
// a breadth-first walk over the graph from the symbols they declare, up to
// maxDepth hops in either edge direction. Non-active files are ordered by
// hop distance, then path, so the same graph always yields the same file
// list and truncation point.
func (s *Service) RelatedSkeleton(ctx context.Context, active []string, maxTokens, maxDepth int) (*Result, error) {
	if maxTokens < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBudget, maxTokens)
	}
	if maxDepth < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDepth, maxDepth)
	}
	snap := s.source.Snapshot()

	rels := make([]string, 0, len(active))
	for _, file := range active {
		rels = append(rels, snap.Rel(file))
	}
	rels = fileutil.DedupeStrings(rels)

	distance, err := relatedFiles(ctx, snap, rels, maxDepth)
	if err != nil {
		return nil, err
	}

	activeSet := fileutil.ToSet(rels)
	related := make([]string, 0, len(distance))
	for file := range distance {
		if !activeSet[file] {
			related = append(related, file)
		}
	}
	sort.Slice(related, func(i, j int) bool {
		if distance[related[i]] != distance[related[j]] {
			return distance[related[i]] < distance[related[j]]
		}
		return related[i] < related[j]
	})

	targets := make([]target, 0, len(rels)+len(related))
	for _, rel := range rels {
		targets = append(targets, target{path: rel})
	}
	for _, rel := range related {
		targets = append(targets, target{path: rel, depth: distance[rel]})
	}

	result, err := s.render(ctx, snap, targets, maxTokens)
	if err != nil {
		return nil, err
	}
	result.Related = related
	return result, nil
}

// relatedFiles maps every file reached from the active files to the hop
// count at which it was first touched. Active files are at distance zero.
func relatedFiles(ctx context.Context, snap *graph.Snapshot, active []string, maxDepth int) (map[string]int, error) {
	distance := make(map[string]int)
	visited := make(map[string]bool)
	var frontier []string
	for _, file := range active {
		distance[file] = 0
		if _, ok := snap.Files[file]; !ok {
			continue
		}
		// File-scope references use the path itself as their endpoint.
		frontier = append(frontier, file)
		frontier = append(frontier, snap.Files[file].Symbols...)
	}
	frontier = fileutil.DedupeStrings(frontier)
	sort.Strings(frontier)
	for _, node := range frontier {
		visited[node] = true
	}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var next []string
		reach := func(endpoint string) {
			if visited[endpoint] {
				return
			}
			file, ok := snap.FileOf(endpoint)
			if !ok {
				return
			}
			visited[endpoint] = true
			next = append(next, endpoint)
			if _, seen := distance[file]; !seen {
				distance[file] = depth
			}
		}
		for _, node := range frontier {
			for _, edge := range snap.Outgoing(node) {
				if edge.Resolved() {
					reach(edge.Target)
				}
			}
			for _, edge := range snap.Incoming(node) {
				reach(edge.Source)
			}
		}
		sort.Strings(next)
		frontier = next
	}
	return distance, nil
}

type target struct {
	path  string
	depth int
}

func (s *Service) render(ctx context.Context, snap *graph.Snapshot, targets []target, maxTokens int) (*Result, error) {
	result := &Result{Files: make([]FileSkeleton, 0, len(targets))}
	b := &budget{max: maxTokens}

	for i, t := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file, complete := b.fit(s.draft(ctx, snap, t))
		result.Files = append(result.Files, file)
		if complete {
			continue
		}
		result.Truncated = true
		for _, rest := range targets[i+1:] {
			result.Files = append(result.Files, FileSkeleton{Path: rest.path, Depth: rest.depth, Truncated: true})
		}
		break
	}

	result.TotalTokens = b.used
	if result.Truncated {
		rendered := 0
		for _, file := range result.Files {
			rendered += file.Symbols
		}
		if rendered == 0 {
			result.Reason = ErrBudgetExceeded.Error()
		}
	}
	return result, nil
}

func (s *Service) draft(ctx context.Context, snap *graph.Snapshot, t target) draft {
	d := draft{
		path:  t.path,
		depth: t.depth,
		head:  []string{headerLine(t.path)},
	}
	analysis, err := s.analyze(ctx, snap, t.path)
	if err != nil {
		d.err = err.Error()
		d.head = append(d.head, errorLine(d.err))
		if entry, ok := snap.Files[t.path]; ok {
			d.language = entry.Language
		}
		return d
	}
	d.language = analysis.Language
	d.head = append(d.head, analysis.Imports...)
	d.body = symbolLines(analysis.Symbols)
	return d
}
