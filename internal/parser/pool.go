package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	sitter "github.com/smacker/go-tree-sitter"
)

const DefaultTreeCacheSize = 2048

// Tree is a parsed file as held by the pool's cache.
type Tree struct {
	Path     string
	Language *Language
	Tree     *sitter.Tree
	Source   []byte
	Digest   string
	ParsedAt time.Time
}

// Root returns the root node of the syntax tree.
func (t *Tree) Root() *sitter.Node {
	return t.Tree.RootNode()
}

// HasErrors reports whether the grammar recovered from syntax errors
// somewhere in the file. Such trees are still usable.
func (t *Tree) HasErrors() bool {
	return t.Tree.RootNode().HasError()
}

// Capture is one named node produced by a query. Captures belonging to the
// same match share Match and are yielded consecutively.
type Capture struct {
	Name      string
	Node      *sitter.Node
	StartByte uint32
	EndByte   uint32
	Match     uint32
	Pattern   uint16
}

type PoolOptions struct {
	CacheSize int
	Logger    *slog.Logger
}

type queryKey struct {
	lang LanguageID
	name string
}

// Pool owns the tree-sitter parsers, the per-path tree cache and the
// compiled queries. Cache entries are only removed by Invalidate, Purge or
// capacity pressure on insert.
type Pool struct {
	registry *Registry
	trees    *lru.Cache[string, *Tree]
	logger   *slog.Logger

	mu      sync.Mutex
	parsers map[LanguageID]*sync.Pool

	qmu     sync.Mutex
	queries map[queryKey]*sitter.Query
	dropped map[queryKey][]int
}

// NewPool creates a parser pool for the registry's languages.
func NewPool(registry *Registry, opts PoolOptions) (*Pool, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultTreeCacheSize
	}
	trees, err := lru.New[string, *Tree](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create tree cache: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pool{
		registry: registry,
		trees:    trees,
		logger:   logger,
		parsers:  make(map[LanguageID]*sync.Pool),
		queries:  make(map[queryKey]*sitter.Query),
		dropped:  make(map[queryKey][]int),
	}, nil
}

// Registry returns the language table the pool parses with.
func (p *Pool) Registry() *Registry {
	return p.registry
}

// Parse parses contents from scratch and caches the tree under path.
// Local syntax errors are kept inline as error nodes; only a missing tree is
// reported as ErrParse.
func (p *Pool) Parse(ctx context.Context, path string, contents []byte) (*Tree, error) {
	tree, err := p.ParseDetached(ctx, path, contents)
	if err != nil {
		return nil, err
	}
	p.trees.Add(path, tree)
	return tree, nil
}

// ParseDetached parses without touching the cache.
func (p *Pool) ParseDetached(ctx context.Context, path string, contents []byte) (*Tree, error) {
	lang, ok := p.registry.ForFile(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, path)
	}
	return p.parse(ctx, lang, path, contents, nil)
}

// Reparse re-parses path incrementally against previous. The changed byte
// range is applied as an edit to a copy of previous, which stays valid
// whether or not the reparse succeeds. The result is cached under path.
func (p *Pool) Reparse(ctx context.Context, path string, contents []byte, previous *Tree) (*Tree, error) {
	lang, ok := p.registry.ForFile(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, path)
	}
	if previous == nil || previous.Tree == nil || previous.Language == nil || previous.Language.ID != lang.ID {
		return p.Parse(ctx, path, contents)
	}
	if bytes.Equal(previous.Source, contents) {
		p.trees.Add(path, previous)
		return previous, nil
	}

	edited := previous.Tree.Copy()
	edited.Edit(ComputeEdit(previous.Source, contents))
	tree, err := p.parse(ctx, lang, path, contents, edited)
	if err != nil {
		p.trees.Remove(path)
		return nil, err
	}
	p.trees.Add(path, tree)
	return tree, nil
}

// ParseOrReparse reparses against the cached tree for path when there is one.
func (p *Pool) ParseOrReparse(ctx context.Context, path string, contents []byte) (*Tree, error) {
	if cached, ok := p.trees.Get(path); ok {
		return p.Reparse(ctx, path, contents, cached)
	}
	return p.Parse(ctx, path, contents)
}

// parse runs one file to completion. Cancellation is only honoured between
// files, so ctx is detached here; a parser that still fails is reset before
// it goes back to the pool, otherwise tree-sitter would resume the abandoned
// parse on its next use.
func (p *Pool) parse(ctx context.Context, lang *Language, path string, contents []byte, old *sitter.Tree) (*Tree, error) {
	sp := p.parserPool(lang)
	ps := sp.Get().(*sitter.Parser)
	defer sp.Put(ps)

	tree, err := ps.ParseCtx(context.WithoutCancel(ctx), old, contents)
	if err != nil {
		ps.Reset()
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	if tree == nil {
		ps.Reset()
		return nil, fmt.Errorf("%w: %s: no tree produced", ErrParse, path)
	}

	return &Tree{
		Path:     path,
		Language: lang,
		Tree:     tree,
		Source:   contents,
		Digest:   Digest(contents),
		ParsedAt: time.Now(),
	}, nil
}

func (p *Pool) parserPool(lang *Language) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()

	sp, ok := p.parsers[lang.ID]
	if !ok {
		grammar := lang.Grammar
		sp = &sync.Pool{New: func() any {
			ps := sitter.NewParser()
			ps.SetLanguage(grammar)
			return ps
		}}
		p.parsers[lang.ID] = sp
	}
	return sp
}

// Cached returns the cached tree for path.
func (p *Pool) Cached(path string) (*Tree, bool) {
	return p.trees.Get(path)
}

// Fresh reports whether the cached tree for path was parsed from content
// with the given digest.
func (p *Pool) Fresh(path, digest string) bool {
	tree, ok := p.trees.Peek(path)
	return ok && tree.Digest == digest
}

// Invalidate drops the cached tree for path.
func (p *Pool) Invalidate(path string) {
	p.trees.Remove(path)
}

// Purge drops every cached tree.
func (p *Pool) Purge() {
	p.trees.Purge()
}

// Len returns the number of cached trees.
func (p *Pool) Len() int {
	return p.trees.Len()
}

// RunQuery executes the named query against tree. The returned sequence is
// lazy and can be ranged over more than once; each pass re-runs the query.
func (p *Pool) RunQuery(tree *Tree, queryName string) (iter.Seq[Capture], error) {
	q, err := p.query(tree.Language, queryName)
	if err != nil {
		return nil, err
	}
	root := tree.Root()
	source := tree.Source

	return func(yield func(Capture) bool) {
		qc := sitter.NewQueryCursor()
		defer qc.Close()
		qc.Exec(q, root)

		for {
			match, ok := qc.NextMatch()
			if !ok {
				return
			}
			match = qc.FilterPredicates(match, source)
			for _, c := range match.Captures {
				capture := Capture{
					Name:      q.CaptureNameForId(c.Index),
					Node:      c.Node,
					StartByte: c.Node.StartByte(),
					EndByte:   c.Node.EndByte(),
					Match:     match.ID,
					Pattern:   match.PatternIndex,
				}
				if !yield(capture) {
					return
				}
			}
		}
	}, nil
}

// DroppedPatterns returns the indexes of patterns the grammar rejected for a
// language's query. It is only populated once the query has been compiled.
func (p *Pool) DroppedPatterns(id LanguageID, queryName string) []int {
	p.qmu.Lock()
	defer p.qmu.Unlock()
	return append([]int(nil), p.dropped[queryKey{id, queryName}]...)
}

func (p *Pool) query(lang *Language, name string) (*sitter.Query, error) {
	key := queryKey{lang: lang.ID, name: name}

	p.qmu.Lock()
	defer p.qmu.Unlock()

	if q, ok := p.queries[key]; ok {
		if q == nil {
			return nil, fmt.Errorf("%w: %s/%s", ErrQuery, lang.Name(), name)
		}
		return q, nil
	}

	q, dropped := compilePatterns(lang.Queries[name], lang.Grammar)
	p.queries[key] = q
	p.dropped[key] = dropped
	if len(dropped) > 0 {
		p.logger.Warn("query patterns rejected by grammar",
			"language", lang.Name(),
			"query", name,
			"dropped", dropped,
		)
	}
	if q == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrQuery, lang.Name(), name)
	}
	return q, nil
}

// compilePatterns compiles all patterns as one query. When the grammar
// rejects the combination, patterns are tried one at a time and the valid
// subset is compiled instead.
func compilePatterns(patterns []string, grammar *sitter.Language) (*sitter.Query, []int) {
	if len(patterns) == 0 {
		return nil, nil
	}
	if q, err := sitter.NewQuery([]byte(strings.Join(patterns, "\n")), grammar); err == nil {
		return q, nil
	}

	valid := make([]string, 0, len(patterns))
	var dropped []int
	for i, pattern := range patterns {
		q, err := sitter.NewQuery([]byte(pattern), grammar)
		if err != nil {
			dropped = append(dropped, i)
			continue
		}
		q.Close()
		valid = append(valid, pattern)
	}
	if len(valid) == 0 {
		return nil, dropped
	}

	q, err := sitter.NewQuery([]byte(strings.Join(valid, "\n")), grammar)
	if err != nil {
		return nil, dropped
	}
	return q, dropped
}
