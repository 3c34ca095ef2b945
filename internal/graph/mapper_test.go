package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skelly-dev/codegraph/internal/languages"
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	clockMu sync.Mutex
	clock   = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

// mustWriteFile writes a file and gives it a modification time later than
// any previous write, so metadata checks see every edit.
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

func newTestMapper(t *testing.T) *Mapper {
	t.Helper()
	pool, err := parser.NewPool(languages.NewDefaultRegistry(), parser.PoolOptions{})
	require.NoError(t, err)
	return NewMapper(pool, Options{Workers: 4, RespectGitignore: true})
}

func scan(t *testing.T, root string) *Mapper {
	t.Helper()
	m := newTestMapper(t)
	_, err := m.Scan(context.Background(), root, nil, nil)
	require.NoError(t, err)
	return m
}

func TestScanResolvesCrossFileCall(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, root, "a.py", "def helper():\n    return 1\n")
	mustWriteFile(t, root, "b.py", "from a import helper\n\n\ndef main():\n    helper()\n")

	m := newTestMapper(t)
	summary, err := m.Scan(context.Background(), root, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Files)
	assert.Equal(t, uint64(1), summary.Generation)
	assert.NotEmpty(t, summary.RunID)

	snap := m.Snapshot()
	incoming := snap.Incoming("helper")
	require.Len(t, incoming, 1)
	assert.Equal(t, "main", incoming[0].Source)
	assert.Equal(t, "b.py", incoming[0].File)
	assert.Equal(t, 5, incoming[0].Line)
	assert.Equal(t, parser.EdgeCall, incoming[0].Type)
}

func TestUpdateLeavesEdgeUnresolvedWhenTargetDeleted(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, root, "a.py", "def helper():\n    return 1\n\n\ndef other():\n    return 2\n")
	mustWriteFile(t, root, "b.py", "def main():\n    helper()\n")
	m := scan(t, root)

	mustWriteFile(t, root, "a.py", "def other():\n    return 2\n")
	summary, err := m.Update(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a.py"}, summary.Reparsed)
	assert.Equal(t, 1, summary.SymbolsRemoved)
	assert.Equal(t, 1, summary.Pruned)
	assert.Equal(t, uint64(2), summary.Generation)
	assert.Contains(t, summary.Impacted, "b.py")

	snap := m.Snapshot()
	_, ok := snap.Symbol("helper")
	assert.False(t, ok)
	edges := snap.Outgoing("main")
	require.Len(t, edges, 1)
	assert.False(t, edges[0].Resolved())
	assert.Equal(t, "helper", edges[0].TargetName)

	mustWriteFile(t, root, "c.py", "def helper():\n    return 3\n")
	summary, err = m.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Promoted)
	assert.Equal(t, "helper", m.Snapshot().Outgoing("main")[0].Target)
}

func TestUpdateWithoutChangesKeepsGeneration(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, root, "main.go", "package main\n\nfunc main() {}\n")
	m := scan(t, root)
	before := m.Snapshot()

	// Same content, new mtime: hashed but not re-extracted.
	mustWriteFile(t, root, "main.go", "package main\n\nfunc main() {}\n")
	summary, err := m.Update(context.Background())
	require.NoError(t, err)
	assert.False(t, summary.Changed())
	assert.Equal(t, before.Generation, summary.Generation)
	assert.Same(t, before, m.Snapshot())
}

func TestIncrementalUpdateMatchesFreshScan(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, root, "pkg/store.go", "package pkg\n\ntype Store struct{}\n\nfunc (s *Store) Get() int { return load() }\n\nfunc load() int { return 1 }\n")
	mustWriteFile(t, root, "pkg/api.go", "package pkg\n\nfunc Serve() { s := &Store{}; s.Get() }\n")
	mustWriteFile(t, root, "app/main.py", "class App:\n    def run(self):\n        self.stop()\n\n    def stop(self):\n        pass\n")
	m := scan(t, root)

	steps := []func(){
		func() {
			mustWriteFile(t, root, "pkg/store.go", "package pkg\n\ntype Store struct{}\n\nfunc (s *Store) Get() int { return 2 }\n")
		},
		func() {
			mustWriteFile(t, root, "pkg/load.go", "package pkg\n\nfunc load() int { return 3 }\n")
			mustWriteFile(t, root, "pkg/store.go", "package pkg\n\ntype Store struct{}\n\nfunc (s *Store) Get() int { return load() }\n")
		},
		func() {
			require.NoError(t, os.Remove(filepath.Join(root, "pkg/api.go")))
		},
		func() {
			mustWriteFile(t, root, "app/main.py", "class App:\n    def run(self):\n        self.stop()\n        helper()\n\n    def stop(self):\n        pass\n\n\ndef helper():\n    pass\n")
		},
		func() {
			mustWriteFile(t, root, "app/broken.py", "def (:\n")
		},
	}

	for i, step := range steps {
		step()
		_, err := m.Update(context.Background())
		require.NoError(t, err, "step %d", i)

		fresh := scan(t, root)
		assert.True(t, m.Snapshot().Equal(fresh.Snapshot()), "step %d: incremental graph differs from fresh scan", i)
	}
}

func TestScanQualifiesCollidingFQNs(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, root, "a/model.py", "class Model:\n    def save(self):\n        pass\n")
	mustWriteFile(t, root, "b/model.py", "class Model:\n    pass\n")
	m := scan(t, root)

	snap := m.Snapshot()
	assert.Contains(t, snap.Symbols, "Model@a/model.py")
	assert.Contains(t, snap.Symbols, "Model@b/model.py")
	save, ok := snap.Symbol("Model.save")
	require.True(t, ok)
	assert.Equal(t, "Model@a/model.py", save.Parent)

	seen := make(map[string]bool)
	for fqn, sym := range snap.Symbols {
		assert.Equal(t, fqn, sym.FQN)
		assert.False(t, seen[fqn])
		seen[fqn] = true
	}
}

func TestScanHonoursIncludeExcludeAndGitignore(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, root, ".gitignore", "generated/\n")
	mustWriteFile(t, root, "src/a.go", "package src\n\nfunc A() {}\n")
	mustWriteFile(t, root, "src/a_test.go", "package src\n\nfunc TestA() {}\n")
	mustWriteFile(t, root, "generated/g.go", "package generated\n\nfunc G() {}\n")
	mustWriteFile(t, root, "node_modules/x/index.js", "function x() {}\n")
	mustWriteFile(t, root, "README.md", "# readme\n")

	m := newTestMapper(t)
	summary, err := m.Scan(context.Background(), root, []string{"*.go"}, []string{"*_test.go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.go"}, m.Snapshot().Paths())
	assert.Equal(t, 1, summary.Files)
}

func TestScanCancelledLeavesGraphUntouched(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, root, "a.go", "package a\n\nfunc A() {}\n")
	m := scan(t, root)
	before := m.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Scan(ctx, root, nil, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Same(t, before, m.Snapshot())

	mustWriteFile(t, root, "a.go", "package a\n\nfunc B() {}\n")
	_, err = m.Update(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Same(t, before, m.Snapshot())

	// The abandoned update must not hide the edit from the next one.
	summary, err := m.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go"}, summary.Reparsed)
}

func TestUpdateBeforeScan(t *testing.T) {
	m := newTestMapper(t)
	_, err := m.Update(context.Background())
	require.ErrorIs(t, err, ErrNotScanned)
	assert.NotNil(t, m.Snapshot())
	assert.Empty(t, m.Snapshot().Symbols)
}

func TestRestoreRequiresMatchingDigests(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, root, "a.py", "def helper():\n    return 1\n")
	mustWriteFile(t, root, "b.py", "def main():\n    helper()\n")
	m := scan(t, root)

	saved, err := m.ExportState()
	require.NoError(t, err)

	restored := newTestMapper(t)
	_, err = restored.Restore(context.Background(), root, saved)
	require.NoError(t, err)
	assert.True(t, m.Snapshot().Equal(restored.Snapshot()))

	mustWriteFile(t, root, "a.py", "def helper():\n    return 2\n")
	_, err = newTestMapper(t).Restore(context.Background(), root, saved)
	require.ErrorIs(t, err, ErrStaleState)

	mustWriteFile(t, root, "c.py", "x = 1\n")
	_, err = newTestMapper(t).Restore(context.Background(), root, saved)
	require.ErrorIs(t, err, ErrStaleState)
}

func TestConcurrentReadersSeeWholeGenerations(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, root, "a.py", "def helper():\n    return 1\n")
	mustWriteFile(t, root, "b.py", "def main():\n    helper()\n")
	m := scan(t, root)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := m.Snapshot()
				for _, edge := range snap.Edges {
					if edge.Resolved() {
						_, ok := snap.Symbols[edge.Target]
						assert.True(t, ok, "resolved edge points outside its generation")
					}
				}
			}
		}()
	}

	for i := 0; i < 5; i++ {
		if i%2 == 0 {
			mustWriteFile(t, root, "a.py", "def other():\n    return 1\n")
		} else {
			mustWriteFile(t, root, "a.py", "def helper():\n    return 1\n")
		}
		_, err := m.Update(context.Background())
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

func bigGoFile(n int) string {
	var b strings.Builder
	b.WriteString("package big\n\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "func F%d(x int) int {\n\tif x > %d {\n\t\treturn x - 1\n\t}\n\treturn F%d(x + 1)\n}\n\n", i, i, (i+1)%n)
	}
	return b.String()
}

func TestScanCancelledMidFileLeavesPoolUsable(t *testing.T) {
	bigRoot := t.TempDir()
	mustWriteFile(t, bigRoot, "big.go", bigGoFile(20000))
	smallRoot := t.TempDir()
	small := "package small\n\nfunc Small() {}\n"
	mustWriteFile(t, smallRoot, "small.go", small)

	m := newTestMapper(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := m.Scan(ctx, bigRoot, nil, nil); err != nil {
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}

	for i := 0; i < 5; i++ {
		_, err := m.Scan(context.Background(), smallRoot, nil, nil)
		require.NoError(t, err)
		snap := m.Snapshot()
		assert.Equal(t, []string{"small.go"}, snap.Paths())
		require.Contains(t, snap.Symbols, "Small")
		assert.Len(t, snap.Symbols, 1)

		tree, ok := m.Pool().Cached("small.go")
		require.True(t, ok)
		assert.EqualValues(t, len(small), tree.Root().EndByte())
		assert.False(t, tree.HasErrors())
	}
}

func TestReadersDoNotTakeTheWriterLock(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, root, "a.py", "def helper():\n    return 1\n")
	m := scan(t, root)

	m.mu.Lock()
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.True(t, m.Scanned())
		assert.NotEmpty(t, m.Root())
		assert.True(t, m.Accepts("a.py", false))
		assert.Contains(t, m.Snapshot().Symbols, "helper")
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("readers waited for the writer lock")
	}
	m.mu.Unlock()
}

func TestUpdateSurvivesCancelledCaller(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, root, "a.go", "package a\n\nfunc A() {}\n")
	m := scan(t, root)
	mustWriteFile(t, root, "big.go", bigGoFile(5000))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := m.Update(ctx)
		first <- err
	}()
	time.Sleep(2 * time.Millisecond)
	cancel()

	_, err := m.Update(context.Background())
	require.NoError(t, err)
	if err := <-first; err != nil {
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Contains(t, m.Snapshot().Symbols, "F4999")
	assert.Contains(t, m.Snapshot().Symbols, "A")
}
