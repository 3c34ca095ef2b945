package skeleton

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skelly-dev/codegraph/internal/graph"
	"github.com/skelly-dev/codegraph/internal/languages"
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustWriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestService(t *testing.T, root string) (*Service, *graph.Mapper) {
	t.Helper()
	pool, err := parser.NewPool(languages.NewDefaultRegistry(), parser.PoolOptions{})
	require.NoError(t, err)
	m := graph.NewMapper(pool, graph.Options{Workers: 2})
	_, err = m.Scan(context.Background(), root, nil, nil)
	require.NoError(t, err)
	return NewService(m, m.Pool(), m.Extractor()), m
}

func bigRust(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "fn f%02d() {}\n", i)
	}
	return b.String()
}

func lines(content string) []string {
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

func TestSkeletonTruncatesToPrefixWithMarker(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, root, "big.rs", bigRust(20))
	svc, _ := newTestService(t, root)
	ctx := context.Background()

	full, err := svc.Skeleton(ctx, []string{"big.rs"}, 20000)
	require.NoError(t, err)
	require.Len(t, full.Files, 1)
	assert.False(t, full.Truncated)
	assert.Equal(t, 20, full.Files[0].Symbols)
	fullLines := lines(full.Files[0].Content)
	require.Len(t, fullLines, 21)
	assert.Equal(t, "// big.rs", fullLines[0])
	assert.Contains(t, fullLines[1], "{ ... }")
	assert.True(t, strings.HasSuffix(fullLines[1], "// L1-1"))

	got, err := svc.Skeleton(ctx, []string{"big.rs"}, 50)
	require.NoError(t, err)
	require.Len(t, got.Files, 1)
	file := got.Files[0]
	assert.True(t, got.Truncated)
	assert.True(t, file.Truncated)
	assert.LessOrEqual(t, got.TotalTokens, 50)
	assert.LessOrEqual(t, EstimateTokens(file.Content), 50)

	gotLines := lines(file.Content)
	kept := file.Symbols
	require.Greater(t, kept, 0)
	require.Less(t, kept, 20)
	assert.Equal(t, fullLines[:kept+1], gotLines[:kept+1], "kept lines are a prefix of the full rendering")
	assert.Equal(t, fmt.Sprintf("// ... truncated (%d more symbols)", 20-kept), gotLines[len(gotLines)-1])
	assert.Equal(t, 20-kept, file.Omitted)
	assert.Empty(t, got.Reason)
}

func TestSkeletonNeverExceedsBudget(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, root, "a.rs", bigRust(12))
	mustWriteFile(t, root, "b.py", "import os\n\n\nclass Greeter:\n    def hello(self):\n        return 1\n\n    def bye(self):\n        return 2\n")
	mustWriteFile(t, root, "c.go", "package c\n\nfunc Run() {}\n\nfunc Stop() {}\n")
	svc, _ := newTestService(t, root)

	files := []string{"a.rs", "b.py", "c.go"}
	for _, max := range []int{1, 3, 10, 25, 50, 77, 100, 150, 333, 1000} {
		got, err := svc.Skeleton(context.Background(), files, max)
		require.NoError(t, err)
		sum := 0
		for _, file := range got.Files {
			sum += EstimateTokens(file.Content)
		}
		assert.LessOrEqual(t, sum, max, "max=%d", max)
		assert.Equal(t, sum, got.TotalTokens, "max=%d", max)
		assert.Len(t, got.Files, len(files), "every requested file is listed, max=%d", max)
	}
}

func TestSkeletonRendersNestingAndImports(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, root, "greet.py", "import os\n\n\nclass Greeter:\n    def hello(self):\n        return 1\n")
	svc, _ := newTestService(t, root)

	got, err := svc.Skeleton(context.Background(), []string{"greet.py"}, 4000)
	require.NoError(t, err)
	require.Len(t, got.Files, 1)
	assert.Equal(t, "python", got.Files[0].Language)
	assert.Equal(t, []string{
		"// greet.py",
		"import os",
		"class Greeter  // L4-6",
		"  def hello(self) { ... }  // L5-6",
	}, lines(got.Files[0].Content))
}

func TestSkeletonMarksUnreadableFiles(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, root, "ok.go", "package ok\n\nfunc Fine() {}\n")
	mustWriteFile(t, root, "notes.txt", "hello\n")
	svc, _ := newTestService(t, root)

	got, err := svc.Skeleton(context.Background(), []string{"missing.go", "notes.txt", "ok.go", "ok.go"}, 4000)
	require.NoError(t, err)
	require.Len(t, got.Files, 3, "duplicates are rendered once")

	assert.Equal(t, "missing.go", got.Files[0].Path)
	assert.NotEmpty(t, got.Files[0].Error)
	assert.Contains(t, got.Files[0].Content, "// error: ")

	assert.Contains(t, got.Files[1].Error, parser.ErrUnsupportedLanguage.Error())

	assert.Empty(t, got.Files[2].Error)
	assert.Equal(t, 1, got.Files[2].Symbols)
	assert.False(t, got.Truncated)
}

func TestSkeletonBudgetTooSmallForAnySymbol(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, root, "a.go", "package a\n\nfunc A() {}\n")
	mustWriteFile(t, root, "b.go", "package b\n\nfunc B() {}\n")
	svc, _ := newTestService(t, root)

	got, err := svc.Skeleton(context.Background(), []string{"a.go", "b.go"}, 1)
	require.NoError(t, err)
	assert.True(t, got.Truncated)
	assert.Equal(t, ErrBudgetExceeded.Error(), got.Reason)
	require.Len(t, got.Files, 2)
	assert.Empty(t, got.Files[0].Content)
	assert.True(t, got.Files[1].Truncated)
	assert.Empty(t, got.Files[1].Content)
}

func TestSkeletonRejectsInvalidArguments(t *testing.T) {
	svc, _ := newTestService(t, t.TempDir())

	_, err := svc.Skeleton(context.Background(), []string{"a.go"}, 0)
	require.ErrorIs(t, err, ErrInvalidBudget)

	_, err = svc.RelatedSkeleton(context.Background(), []string{"a.go"}, 100, 0)
	require.ErrorIs(t, err, ErrInvalidDepth)
}

func writeChain(t *testing.T, root string) {
	t.Helper()
	mustWriteFile(t, root, "a.py", "from b import helper\n\n\ndef main():\n    helper()\n")
	mustWriteFile(t, root, "b.py", "from c import deep\n\n\ndef helper():\n    return deep()\n")
	mustWriteFile(t, root, "c.py", "def deep():\n    return 1\n")
	mustWriteFile(t, root, "z.py", "def unrelated():\n    return 2\n")
}

func TestRelatedSkeletonOrdersByDistance(t *testing.T) {
	root := t.TempDir()
	writeChain(t, root)
	svc, _ := newTestService(t, root)
	ctx := context.Background()

	got, err := svc.RelatedSkeleton(ctx, []string{"a.py"}, 4000, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.py"}, got.Related)

	got, err = svc.RelatedSkeleton(ctx, []string{"a.py"}, 4000, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.py", "c.py"}, got.Related)
	require.Len(t, got.Files, 3)
	assert.Equal(t, "a.py", got.Files[0].Path)
	assert.Equal(t, 0, got.Files[0].Depth)
	assert.Equal(t, 1, got.Files[1].Depth)
	assert.Equal(t, 2, got.Files[2].Depth)

	// Reverse direction: c.py is reached through its caller.
	got, err = svc.RelatedSkeleton(ctx, []string{"c.py"}, 4000, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.py", "a.py"}, got.Related)
}

func TestRelatedSkeletonIsDeterministic(t *testing.T) {
	root := t.TempDir()
	writeChain(t, root)
	svc, _ := newTestService(t, root)

	first, err := svc.RelatedSkeleton(context.Background(), []string{"b.py", "a.py"}, 60, 3)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := svc.RelatedSkeleton(context.Background(), []string{"b.py", "a.py"}, 60, 3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "b.py", first.Files[0].Path, "active files keep request order")
	assert.Equal(t, "a.py", first.Files[1].Path)
	assert.LessOrEqual(t, first.TotalTokens, 60)
}

func TestAnalyzeFile(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, root, "a.go", "package a\n\ntype Server struct{}\n\nfunc (s *Server) Start() {}\n")
	svc, _ := newTestService(t, root)
	ctx := context.Background()

	got, err := svc.AnalyzeFile(ctx, "a.go")
	require.NoError(t, err)
	assert.True(t, got.Indexed)
	require.Len(t, got.Symbols, 2)
	assert.Equal(t, "Server", got.Symbols[0].FQN)
	assert.Equal(t, "Server.Start", got.Symbols[1].FQN)
	assert.Equal(t, "Server", got.Symbols[1].Parent)

	// Files written after the scan are parsed on demand.
	mustWriteFile(t, root, "later.py", "def late():\n    pass\n")
	got, err = svc.AnalyzeFile(ctx, filepath.Join(root, "later.py"))
	require.NoError(t, err)
	assert.False(t, got.Indexed)
	assert.Equal(t, "later.py", got.Path)
	require.Len(t, got.Symbols, 1)
	assert.Equal(t, "late", got.Symbols[0].Name)

	_, err = svc.AnalyzeFile(ctx, "nope.rb")
	require.Error(t, err)
}
