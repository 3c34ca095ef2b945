package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/languages"
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/skelly-dev/codegraph/internal/skeleton"
	"github.com/skelly-dev/codegraph/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	clockMu sync.Mutex
	clock   = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

func mustWriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	clockMu.Lock()
	clock = clock.Add(time.Second)
	mtime := clock
	clockMu.Unlock()
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

type recordingPersister struct {
	mu    sync.Mutex
	saves []*state.State
}

func (p *recordingPersister) Save(_ context.Context, st *state.State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves = append(p.saves, st)
	return nil
}

func (p *recordingPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.saves)
}

func newTestService(t *testing.T, root string, persister Persister) *Service {
	t.Helper()
	pool, err := parser.NewPool(languages.NewDefaultRegistry(), parser.PoolOptions{})
	require.NoError(t, err)
	mapper := graph.NewMapper(pool, graph.Options{Workers: 2})
	return New(mapper, Options{Root: root, Persister: persister})
}

func intPtr(v int) *int {
	return &v
}

func writeHelperRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	mustWriteFile(t, root, "a.py", "def helper():\n    return 1\n")
	mustWriteFile(t, root, "b.py", "from a import helper\n\n\ndef main():\n    helper()\n")
	return root
}

func TestReferencesAcrossFiles(t *testing.T) {
	svc := newTestService(t, writeHelperRepo(t), nil)

	got, err := svc.FindReferences(context.Background(), FindReferencesArgs{SymbolName: "helper"})
	require.NoError(t, err)
	require.Len(t, got.References, 1)
	ref := got.References[0]
	assert.Equal(t, "b.py", ref.FilePath)
	assert.Equal(t, 5, ref.Line)
	assert.Equal(t, "main", ref.Source)
	assert.Equal(t, "helper", ref.Target)
	assert.Equal(t, "Call", ref.ReferenceType)
	assert.True(t, ref.Resolved)
}

func TestUpdateAfterDeletingTarget(t *testing.T) {
	root := writeHelperRepo(t)
	persister := &recordingPersister{}
	svc := newTestService(t, root, persister)
	ctx := context.Background()

	first, err := svc.Update(ctx, UpdateArgs{})
	require.NoError(t, err)
	assert.Equal(t, "scanned", first.Status)
	assert.Equal(t, 2, first.FilesScanned)
	assert.Equal(t, 1, persister.count())

	mustWriteFile(t, root, "a.py", "def other():\n    return 2\n")
	second, err := svc.Update(ctx, UpdateArgs{RootPath: root})
	require.NoError(t, err)
	assert.Equal(t, "updated", second.Status)
	assert.Equal(t, 1, second.FilesReparsed)
	assert.Greater(t, second.Generation, first.Generation)
	assert.Equal(t, 2, persister.count())

	defs, err := svc.FindDefinitions(ctx, FindDefinitionsArgs{SymbolName: "helper"})
	require.NoError(t, err)
	assert.Empty(t, defs.Definitions)

	refs, err := svc.FindReferences(ctx, FindReferencesArgs{SymbolName: "helper"})
	require.NoError(t, err)
	require.Len(t, refs.References, 1)
	assert.False(t, refs.References[0].Resolved)
	assert.Empty(t, refs.References[0].Target)

	third, err := svc.Update(ctx, UpdateArgs{})
	require.NoError(t, err)
	assert.Equal(t, "unchanged", third.Status)
	assert.Equal(t, second.Generation, third.Generation)
	assert.Equal(t, 2, persister.count())
}

func TestSubgraphDepthOne(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, root, "chain.py", "def Foo():\n    Bar()\n\n\ndef Bar():\n    Baz()\n\n\ndef Baz():\n    pass\n")
	svc := newTestService(t, root, nil)

	got, err := svc.Subgraph(context.Background(), SubgraphArgs{SymbolName: "Foo", MaxDepth: intPtr(1)})
	require.NoError(t, err)
	var ids []string
	for _, node := range got.Nodes {
		ids = append(ids, node.ID)
	}
	assert.Equal(t, []string{"Foo", "Bar"}, ids)
	require.Len(t, got.Edges, 1)
	assert.Equal(t, EdgeInfo{Source: "Foo", Target: "Bar", EdgeType: "Call"}, got.Edges[0])

	got, err = svc.Subgraph(context.Background(), SubgraphArgs{SymbolName: "Foo", Depth: intPtr(2)})
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 3, "depth is accepted as an alias")
	assert.Equal(t, 2, got.MaxDepth)
}

func TestArgumentValidation(t *testing.T) {
	svc := newTestService(t, writeHelperRepo(t), nil)
	ctx := context.Background()

	cases := []struct {
		name  string
		field string
		run   func() error
	}{
		{"zero depth", "max_depth", func() error {
			_, err := svc.Subgraph(ctx, SubgraphArgs{SymbolName: "Foo", MaxDepth: intPtr(0)})
			return err
		}},
		{"negative depth", "max_depth", func() error {
			_, err := svc.Subgraph(ctx, SubgraphArgs{SymbolName: "Foo", MaxDepth: intPtr(-1)})
			return err
		}},
		{"depth above limit", "max_depth", func() error {
			_, err := svc.Subgraph(ctx, SubgraphArgs{SymbolName: "Foo", MaxDepth: intPtr(6)})
			return err
		}},
		{"missing symbol", "symbol_name", func() error {
			_, err := svc.FindDefinitions(ctx, FindDefinitionsArgs{})
			return err
		}},
		{"unknown kind", "symbol_type", func() error {
			_, err := svc.FindDefinitions(ctx, FindDefinitionsArgs{SymbolName: "helper", SymbolType: "gizmo"})
			return err
		}},
		{"zero budget", "max_tokens", func() error {
			_, err := svc.FilesSkeleton(ctx, FilesSkeletonArgs{FilePaths: []string{"a.py"}, MaxTokens: intPtr(0)})
			return err
		}},
		{"negative related budget", "max_tokens", func() error {
			_, err := svc.RelatedSkeleton(ctx, RelatedSkeletonArgs{ActiveFiles: []string{"a.py"}, MaxTokens: intPtr(-5)})
			return err
		}},
		{"no files", "file_paths", func() error {
			_, err := svc.FilesSkeleton(ctx, FilesSkeletonArgs{})
			return err
		}},
		{"related depth", "max_depth", func() error {
			_, err := svc.RelatedSkeleton(ctx, RelatedSkeletonArgs{ActiveFiles: []string{"a.py"}, MaxDepth: intPtr(11)})
			return err
		}},
		{"missing root", "root_path", func() error {
			_, err := svc.Update(ctx, UpdateArgs{RootPath: filepath.Join(t.TempDir(), "nope")})
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			require.ErrorIs(t, err, ErrInvalidArgument)
			var argErr *ArgumentError
			require.ErrorAs(t, err, &argErr)
			assert.Equal(t, tc.field, argErr.Field)
		})
	}
}

func TestCallDecodesArguments(t *testing.T) {
	svc := newTestService(t, writeHelperRepo(t), nil)
	ctx := context.Background()

	out, err := svc.Call(ctx, FindSymbolDefinitions, json.RawMessage(`{"symbol_name":"helper","symbol_type":"function"}`))
	require.NoError(t, err)
	defs, ok := out.(*DefinitionsResult)
	require.True(t, ok)
	require.Len(t, defs.Definitions, 1)
	assert.Equal(t, "Function", defs.Definitions[0].SymbolType)
	assert.Equal(t, "a.py", defs.Definitions[0].FilePath)

	_, err = svc.Call(ctx, GetSymbolSubgraph, json.RawMessage(`{"symbol_name":"helper","max_depth":0}`))
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Call(ctx, FindSymbolDefinitions, json.RawMessage(`{"name":"helper"}`))
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Call(ctx, "explode", nil)
	require.ErrorIs(t, err, ErrUnknownTool)

	for _, name := range Names() {
		assert.NotEmpty(t, Description(name), name)
	}
	assert.Len(t, Names(), 9)
}

func TestDefinitionsSuggestOnMiss(t *testing.T) {
	svc := newTestService(t, writeHelperRepo(t), nil)

	got, err := svc.FindDefinitions(context.Background(), FindDefinitionsArgs{SymbolName: "helpr"})
	require.NoError(t, err)
	assert.Empty(t, got.Definitions)
	assert.Contains(t, got.Suggestions, "helper")
}

func TestAnalyzeCodeReportsNestedSymbols(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, root, "Foo.cs", "class Foo { void Bar() {} }\n")
	svc := newTestService(t, root, nil)

	got, err := svc.AnalyzeCode(context.Background(), AnalyzeCodeArgs{FilePath: "Foo.cs"})
	require.NoError(t, err)
	assert.Equal(t, "csharp", got.Language)
	require.Len(t, got.Symbols, 2)
	assert.Equal(t, "Foo", got.Symbols[0].FQN)
	assert.Equal(t, "Class", got.Symbols[0].SymbolType)
	assert.Equal(t, "Foo.Bar", got.Symbols[1].FQN)
	assert.Equal(t, "Method", got.Symbols[1].SymbolType)
	assert.Equal(t, "Foo", got.Symbols[1].Parent)

	missing, err := svc.AnalyzeCode(context.Background(), AnalyzeCodeArgs{FilePath: "Gone.cs"})
	require.NoError(t, err, "unreadable files are a partial result")
	assert.NotEmpty(t, missing.Error)
	assert.Empty(t, missing.Symbols)
}

func TestCodeGraphFiltersFiles(t *testing.T) {
	root := writeHelperRepo(t)
	mustWriteFile(t, root, "lib/util.go", "package lib\n\nfunc Util() {}\n")
	svc := newTestService(t, root, nil)
	ctx := context.Background()

	all, err := svc.CodeGraph(ctx, CodeGraphArgs{RootPath: root})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Stats.Files)
	assert.Len(t, all.Nodes, 3)
	require.Len(t, all.Edges, 1)
	assert.Equal(t, "main", all.Edges[0].Source)

	py, err := svc.CodeGraph(ctx, CodeGraphArgs{IncludeFiles: []string{"*.py"}})
	require.NoError(t, err)
	assert.Equal(t, 2, py.Stats.Files)
	assert.Len(t, py.Nodes, 2)

	noB, err := svc.CodeGraph(ctx, CodeGraphArgs{ExcludePatterns: []string{"b.py"}})
	require.NoError(t, err)
	assert.Equal(t, 2, noB.Stats.Files)
	assert.Empty(t, noB.Edges, "edges need both ends inside the filtered set")
}

func TestSearchSymbols(t *testing.T) {
	svc := newTestService(t, writeHelperRepo(t), nil)

	got, err := svc.Search(context.Background(), SearchArgs{Query: "helper"})
	require.NoError(t, err)
	require.NotEmpty(t, got.Results)
	assert.Equal(t, "helper", got.Results[0].FQN)

	_, err = svc.Search(context.Background(), SearchArgs{Query: "helper", Limit: intPtr(0)})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSkeletonTools(t *testing.T) {
	svc := newTestService(t, writeHelperRepo(t), nil)
	ctx := context.Background()

	files, err := svc.FilesSkeleton(ctx, FilesSkeletonArgs{FilePaths: []string{"a.py", "b.py"}})
	require.NoError(t, err)
	require.Len(t, files.Files, 2)
	assert.False(t, files.Truncated)
	assert.Contains(t, files.Files[0].Content, "def helper() { ... }")

	related, err := svc.RelatedSkeleton(ctx, RelatedSkeletonArgs{ActiveFiles: []string{"b.py"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py"}, related.Related)
}

func TestFilesSkeletonSmallBudgetTruncates(t *testing.T) {
	root := t.TempDir()
	var src strings.Builder
	for i := 1; i <= 20; i++ {
		fmt.Fprintf(&src, "fn f%02d() {}\n", i)
	}
	mustWriteFile(t, root, "big.rs", src.String())
	svc := newTestService(t, root, nil)
	ctx := context.Background()

	out, err := svc.Call(ctx, GetMultipleFilesSkeleton, json.RawMessage(`{"file_paths":["big.rs"],"max_tokens":50}`))
	require.NoError(t, err)
	got, ok := out.(*skeleton.Result)
	require.True(t, ok)
	require.Len(t, got.Files, 1)
	file := got.Files[0]
	assert.True(t, got.Truncated)
	assert.LessOrEqual(t, got.TotalTokens, 50)
	require.Greater(t, file.Symbols, 0)
	require.Less(t, file.Symbols, 20)
	lines := strings.Split(strings.TrimSuffix(file.Content, "\n"), "\n")
	require.Len(t, lines, file.Symbols+2)
	assert.Equal(t, "// big.rs", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "fn f01()"), lines[1])
	assert.Equal(t, fmt.Sprintf("// ... truncated (%d more symbols)", 20-file.Symbols), lines[len(lines)-1])

	tiny, err := svc.FilesSkeleton(ctx, FilesSkeletonArgs{FilePaths: []string{"big.rs"}, MaxTokens: intPtr(1)})
	require.NoError(t, err)
	assert.True(t, tiny.Truncated)
	assert.Equal(t, skeleton.ErrBudgetExceeded.Error(), tiny.Reason)

	related, err := svc.RelatedSkeleton(ctx, RelatedSkeletonArgs{ActiveFiles: []string{"big.rs"}, MaxTokens: intPtr(50)})
	require.NoError(t, err)
	assert.True(t, related.Truncated)
	assert.LessOrEqual(t, related.TotalTokens, 50)
}

func TestReadsDoNotWaitForUpdate(t *testing.T) {
	root := writeHelperRepo(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	var blocking atomic.Bool

	pool, err := parser.NewPool(languages.NewDefaultRegistry(), parser.PoolOptions{})
	require.NoError(t, err)
	mapper := graph.NewMapper(pool, graph.Options{
		Workers: 1,
		Progress: func(rel string, done, total int) {
			if blocking.CompareAndSwap(true, false) {
				close(entered)
				<-release
			}
		},
	})
	svc := New(mapper, Options{Root: root})
	ctx := context.Background()

	_, err = svc.Update(ctx, UpdateArgs{})
	require.NoError(t, err)
	before := mapper.Snapshot().Generation

	mustWriteFile(t, root, "a.py", "def helper():\n    return 2\n")
	blocking.Store(true)
	updated := make(chan error, 1)
	go func() {
		_, err := svc.Update(ctx, UpdateArgs{})
		updated <- err
	}()
	<-entered

	reads := make(chan *DefinitionsResult, 1)
	go func() {
		got, err := svc.FindDefinitions(ctx, FindDefinitionsArgs{SymbolName: "helper"})
		assert.NoError(t, err)
		reads <- got
	}()
	select {
	case got := <-reads:
		require.NotNil(t, got)
		require.Len(t, got.Definitions, 1)
		assert.Equal(t, "a.py", got.Definitions[0].FilePath)
	case <-time.After(5 * time.Second):
		t.Fatal("read blocked behind the in-flight update")
	}
	assert.Equal(t, before, mapper.Snapshot().Generation, "the read saw the previous generation")

	close(release)
	require.NoError(t, <-updated)
	assert.Equal(t, before+1, mapper.Snapshot().Generation)
}
