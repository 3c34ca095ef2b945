package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/skelly-dev/codegraph/internal/extract"
	"github.com/skelly-dev/codegraph/internal/ignore"
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/skelly-dev/codegraph/internal/state"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotScanned is returned by Update before any Scan or Restore.
	ErrNotScanned = errors.New("repository has not been scanned")

	// ErrStaleState is returned by Restore when the saved state no longer
	// matches the files on disk.
	ErrStaleState = errors.New("saved state is stale")
)

// Options configures a Mapper.
type Options struct {
	Include          []string
	Exclude          []string
	IgnoreRules      []string
	RespectGitignore bool
	Workers          int
	Logger           *slog.Logger
	// Progress is called from worker goroutines after each file is indexed.
	Progress ProgressFunc
}

// ProgressFunc receives the path of the file just indexed, the number of
// files done so far and the number being indexed in this run.
type ProgressFunc func(rel string, done, total int)

// ScanSummary describes the outcome of a full scan.
type ScanSummary struct {
	RunID       string              `json:"run_id"`
	Root        string              `json:"root"`
	Generation  uint64              `json:"generation"`
	Files       int                 `json:"files"`
	Symbols     int                 `json:"symbols"`
	Edges       int                 `json:"edges"`
	Unresolved  int                 `json:"unresolved"`
	Failed      int                 `json:"failed"`
	Unsupported int                 `json:"unsupported"`
	Issues      []parser.ParseIssue `json:"issues,omitempty"`
	Duration    time.Duration       `json:"duration"`
}

// UpdateSummary describes the outcome of an incremental update.
type UpdateSummary struct {
	RunID          string              `json:"run_id"`
	Root           string              `json:"root"`
	Generation     uint64              `json:"generation"`
	Scanned        int                 `json:"files_scanned"`
	Reparsed       []string            `json:"reparsed,omitempty"`
	Removed        []string            `json:"removed,omitempty"`
	Impacted       []string            `json:"impacted,omitempty"`
	SymbolsAdded   int                 `json:"symbols_added"`
	SymbolsRemoved int                 `json:"symbols_removed"`
	SymbolsChanged int                 `json:"symbols_changed"`
	Promoted       int                 `json:"promoted_edges"`
	Pruned         int                 `json:"pruned_edges"`
	Symbols        int                 `json:"symbols"`
	Edges          int                 `json:"edges"`
	Unresolved     int                 `json:"unresolved"`
	Issues         []parser.ParseIssue `json:"issues,omitempty"`
	Duration       time.Duration       `json:"duration"`
}

// Changed reports whether the update produced a new generation.
func (s *UpdateSummary) Changed() bool {
	return len(s.Reparsed) > 0 || len(s.Removed) > 0
}

// workspace is the indexed root and the filter its files were selected with.
type workspace struct {
	root   string
	filter *ignore.Filter
}

// Mapper owns the symbol graph of one repository. Writers (Scan, Update,
// Restore) are serialized by mu; readers load the current Snapshot and
// workspace atomically and never wait for a writer.
type Mapper struct {
	pool      *parser.Pool
	registry  *parser.Registry
	extractor *extract.Extractor
	opts      Options
	logger    *slog.Logger

	mu    sync.Mutex
	state *state.State

	current atomic.Pointer[Snapshot]
	ws      atomic.Pointer[workspace]
	flight  singleflight.Group
}

func NewMapper(pool *parser.Pool, opts Options) *Mapper {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	m := &Mapper{
		pool:      pool,
		registry:  pool.Registry(),
		extractor: extract.New(pool),
		opts:      opts,
		logger:    logger,
	}
	m.current.Store(emptySnapshot(""))
	return m
}

// Pool returns the parser pool the mapper parses with.
func (m *Mapper) Pool() *parser.Pool {
	return m.pool
}

// Extractor returns the extractor the mapper extracts with.
func (m *Mapper) Extractor() *extract.Extractor {
	return m.extractor
}

// Snapshot returns the current generation. It is never nil.
func (m *Mapper) Snapshot() *Snapshot {
	return m.current.Load()
}

// Root returns the scanned root, or "" before the first scan.
func (m *Mapper) Root() string {
	if ws := m.ws.Load(); ws != nil {
		return ws.root
	}
	return ""
}

// Scanned reports whether a scan or restore has completed.
func (m *Mapper) Scanned() bool {
	return m.ws.Load() != nil
}

// Scan indexes every matching file under root, replacing the current graph.
// Include and exclude fall back to the mapper options when nil. A cancelled
// scan leaves the current graph untouched.
func (m *Mapper) Scan(ctx context.Context, root string, include, exclude []string) (*ScanSummary, error) {
	started := time.Now()
	runID := uuid.NewString()

	root, err := absDir(root)
	if err != nil {
		return nil, err
	}
	if include == nil {
		include = m.opts.Include
	}
	if exclude == nil {
		exclude = m.opts.Exclude
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	filter, err := m.newFilter(root, include, exclude)
	if err != nil {
		return nil, err
	}

	logger := m.logger.With("run_id", runID, "root", root)
	logger.Info("scan started")

	files, unsupported, err := discover(ctx, root, filter, m.registry)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	if m.Root() != root {
		m.pool.Purge()
	}
	results, err := indexFiles(ctx, files, m.opts.Workers, m.pool, m.extractor, nil, m.opts.Progress)
	if err != nil {
		logger.Warn("scan abandoned", "error", err)
		return nil, err
	}

	st := state.NewState(root)
	for _, result := range results {
		result.apply(st)
		if result.failure != "" {
			logger.Warn("file indexed without symbols", "file", result.rel, "reason", result.failure)
		}
	}

	snap := Assemble(root, st.Records(), st.Issues(), m.Snapshot().Generation+1)
	st.SetDependencies(snap.FileDependencies())

	m.state = st
	m.ws.Store(&workspace{root: root, filter: filter})
	m.current.Store(snap)

	stats := snap.Stats()
	summary := &ScanSummary{
		RunID:       runID,
		Root:        root,
		Generation:  snap.Generation,
		Files:       stats.Files,
		Symbols:     stats.Symbols,
		Edges:       stats.Edges,
		Unresolved:  stats.Unresolved,
		Failed:      stats.Failed,
		Unsupported: unsupported,
		Issues:      snap.Issues,
		Duration:    time.Since(started),
	}
	logger.Info("scan finished",
		"generation", summary.Generation,
		"files", summary.Files,
		"symbols", summary.Symbols,
		"edges", summary.Edges,
		"failed", summary.Failed,
		"duration", summary.Duration,
	)
	return summary, nil
}

// Update re-extracts files whose metadata and digest changed since the last
// scan, drops deleted files and re-resolves every edge. Concurrent callers
// share one run, which is not cancelled by any single caller. The generation
// only advances when the graph changed.
func (m *Mapper) Update(ctx context.Context) (*UpdateSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := m.flight.DoChan("update", func() (any, error) {
		return m.update(context.WithoutCancel(ctx))
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	v, err := res.Val, res.Err
	if err != nil {
		return nil, err
	}
	return v.(*UpdateSummary), nil
}

func (m *Mapper) update(ctx context.Context) (*UpdateSummary, error) {
	started := time.Now()
	runID := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()

	ws := m.ws.Load()
	if ws == nil {
		return nil, ErrNotScanned
	}
	logger := m.logger.With("run_id", runID, "root", ws.root)

	files, _, err := discover(ctx, ws.root, ws.filter, m.registry)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", ws.root, err)
	}

	next := m.state.Clone()
	present := make(map[string]bool, len(files))
	stale := make([]candidate, 0)
	for _, file := range files {
		present[file.rel] = true
		if next.NeedsDigest(file.rel, file.info) {
			stale = append(stale, file)
		}
	}

	results, err := indexFiles(ctx, stale, m.opts.Workers, m.pool, m.extractor, m.state, m.opts.Progress)
	if err != nil {
		logger.Warn("update abandoned", "error", err)
		return nil, err
	}

	summary := &UpdateSummary{
		RunID:   runID,
		Root:    ws.root,
		Scanned: len(files),
	}
	for _, result := range results {
		result.apply(next)
		if result.unchanged {
			continue
		}
		summary.Reparsed = append(summary.Reparsed, result.rel)
		summary.SymbolsAdded += len(result.diff.Added)
		summary.SymbolsRemoved += len(result.diff.Removed)
		summary.SymbolsChanged += len(result.diff.Changed)
		if result.failure != "" {
			logger.Warn("file indexed without symbols", "file", result.rel, "reason", result.failure)
			if recorded, ok := m.state.Files[result.rel]; ok {
				summary.SymbolsRemoved += len(recorded.Symbols)
			}
		}
	}
	for _, file := range next.DeletedFiles(present) {
		if recorded, ok := next.Files[file]; ok {
			summary.SymbolsRemoved += len(recorded.Symbols)
		}
		next.RemoveFile(file)
		m.pool.Invalidate(file)
		summary.Removed = append(summary.Removed, file)
	}

	previous := m.Snapshot()
	if !summary.Changed() {
		m.state = next
		fillTotals(summary, previous, started)
		logger.Debug("update found no changes", "generation", previous.Generation)
		return summary, nil
	}

	summary.Impacted = m.state.ImpactedFiles(summary.Reparsed, summary.Removed)
	snap := Assemble(ws.root, next.Records(), next.Issues(), previous.Generation+1)
	next.SetDependencies(snap.FileDependencies())
	summary.Promoted, summary.Pruned = reconcileEdges(previous, snap)

	m.state = next
	m.current.Store(snap)
	fillTotals(summary, snap, started)

	logger.Info("update finished",
		"generation", summary.Generation,
		"reparsed", len(summary.Reparsed),
		"removed", len(summary.Removed),
		"promoted", summary.Promoted,
		"pruned", summary.Pruned,
		"duration", summary.Duration,
	)
	return summary, nil
}

func fillTotals(summary *UpdateSummary, snap *Snapshot, started time.Time) {
	stats := snap.Stats()
	summary.Generation = snap.Generation
	summary.Symbols = stats.Symbols
	summary.Edges = stats.Edges
	summary.Unresolved = stats.Unresolved
	summary.Issues = snap.Issues
	summary.Duration = time.Since(started)
}

type siteKey struct {
	file       string
	line       int
	column     int
	edgeType   parser.EdgeType
	targetName string
}

// reconcileEdges compares reference sites present in both generations and
// counts the ones that became resolved and the ones whose target went away.
func reconcileEdges(before, after *Snapshot) (promoted, pruned int) {
	targets := make(map[siteKey]string, len(before.Edges))
	for _, edge := range before.Edges {
		targets[edgeSite(edge)] = edge.Target
	}
	for _, edge := range after.Edges {
		old, ok := targets[edgeSite(edge)]
		if !ok {
			continue
		}
		switch {
		case old == "" && edge.Resolved():
			promoted++
		case old != "" && !edge.Resolved():
			pruned++
		}
	}
	return promoted, pruned
}

func edgeSite(edge parser.Edge) siteKey {
	edgeType := edge.Type
	if edgeType == parser.EdgeImplements {
		edgeType = parser.EdgeInherits
	}
	return siteKey{
		file:       edge.File,
		line:       edge.Line,
		column:     edge.Column,
		edgeType:   edgeType,
		targetName: edge.TargetName,
	}
}

// Restore installs previously saved state for root without parsing. Every
// file on disk must be present in st with the same digest and st must not
// list files that are gone; otherwise ErrStaleState is returned and nothing
// changes.
func (m *Mapper) Restore(ctx context.Context, root string, st *state.State) (*ScanSummary, error) {
	started := time.Now()

	root, err := absDir(root)
	if err != nil {
		return nil, err
	}
	if !st.Compatible() {
		return nil, fmt.Errorf("%w: version %s/%s", ErrStaleState, st.Version, st.ParserVersion)
	}
	if filepath.Clean(st.Root) != root {
		return nil, fmt.Errorf("%w: saved for %s", ErrStaleState, st.Root)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	filter, err := m.newFilter(root, m.opts.Include, m.opts.Exclude)
	if err != nil {
		return nil, err
	}
	files, unsupported, err := discover(ctx, root, filter, m.registry)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	if len(files) != len(st.Files) {
		return nil, fmt.Errorf("%w: %d files on disk, %d saved", ErrStaleState, len(files), len(st.Files))
	}

	next := st.Clone()
	digests := make(map[string]string, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		contents, err := os.ReadFile(file.abs)
		if err != nil {
			return nil, fmt.Errorf("%w: %s unreadable", ErrStaleState, file.rel)
		}
		digests[file.rel] = parser.Digest(contents)
		next.Touch(file.rel, file.info)
	}
	if changed := next.ChangedFiles(digests); len(changed) > 0 {
		return nil, fmt.Errorf("%w: %d files changed, first %s", ErrStaleState, len(changed), changed[0])
	}

	snap := Assemble(root, next.Records(), next.Issues(), m.Snapshot().Generation+1)
	next.SetDependencies(snap.FileDependencies())

	m.pool.Purge()
	m.state = next
	m.ws.Store(&workspace{root: root, filter: filter})
	m.current.Store(snap)

	stats := snap.Stats()
	m.logger.Info("state restored", "root", root, "generation", snap.Generation, "files", stats.Files)
	return &ScanSummary{
		RunID:       uuid.NewString(),
		Root:        root,
		Generation:  snap.Generation,
		Files:       stats.Files,
		Symbols:     stats.Symbols,
		Edges:       stats.Edges,
		Unresolved:  stats.Unresolved,
		Failed:      stats.Failed,
		Unsupported: unsupported,
		Issues:      snap.Issues,
		Duration:    time.Since(started),
	}, nil
}

// ExportState returns a copy of the per-file state for persistence.
func (m *Mapper) ExportState() (*state.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ws.Load() == nil {
		return nil, ErrNotScanned
	}
	return m.state.Clone(), nil
}

// Accepts reports whether a path under the scanned root takes part in the
// index. It is used by the watcher to drop irrelevant events.
func (m *Mapper) Accepts(rel string, isDir bool) bool {
	ws := m.ws.Load()
	if ws == nil {
		return false
	}
	filter := ws.filter
	if isDir {
		return !filter.SkipDir(rel)
	}
	if _, ok := m.registry.ForFile(rel); !ok {
		return false
	}
	return filter.Accept(rel)
}

func (m *Mapper) newFilter(root string, include, exclude []string) (*ignore.Filter, error) {
	matcher := ignore.NewMatcher(m.opts.IgnoreRules)
	if m.opts.RespectGitignore {
		var err error
		matcher, err = matcher.WithGitignore(root)
		if err != nil {
			return nil, fmt.Errorf("load .gitignore: %w", err)
		}
	}
	return ignore.NewFilter(matcher, include, exclude), nil
}

func absDir(root string) (string, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("root %s is not a directory", abs)
	}
	return abs, nil
}
