package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_DefaultAndUserOverrides(t *testing.T) {
	m := NewMatcher([]string{
		"vendor/**",
		"!vendor/keep/file.go",
		"*.tmp",
	})

	cases := []struct {
		path    string
		isDir   bool
		ignored bool
	}{
		{path: ".git/config", isDir: false, ignored: true},
		{path: ".codegraph/cache.db", isDir: false, ignored: true},
		{path: "src/.hidden/a.go", isDir: false, ignored: true},
		{path: ".github", isDir: true, ignored: true},
		{path: "node_modules/pkg/index.js", isDir: false, ignored: true},
		{path: "vendor/lib/a.go", isDir: false, ignored: true},
		{path: "vendor/keep/file.go", isDir: false, ignored: false},
		{path: "nested/cache.tmp", isDir: false, ignored: true},
		{path: "src/main.go", isDir: false, ignored: false},
		{path: ".", isDir: true, ignored: false},
	}

	for _, tc := range cases {
		got := m.ShouldIgnore(tc.path, tc.isDir)
		if got != tc.ignored {
			t.Fatalf("path %s: expected ignored=%v, got %v", tc.path, tc.ignored, got)
		}
	}
}

func TestMatcher_NegatedDirectoryRule(t *testing.T) {
	m := NewMatcher([]string{
		"build/",
		"!build/include/",
	})

	if !m.ShouldIgnore("build/out/file.go", false) {
		t.Fatalf("expected build/out/file.go to be ignored")
	}
	if m.ShouldIgnore("build/include/file.go", false) {
		t.Fatalf("expected build/include/file.go to be included")
	}
}

func TestMatcher_Gitignore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("generated/\n*.pb.go\n"), 0o644))

	m, err := NewMatcher(nil).WithGitignore(root)
	require.NoError(t, err)

	assert.True(t, m.ShouldIgnore("generated", true))
	assert.True(t, m.ShouldIgnore("api/service.pb.go", false))
	assert.False(t, m.ShouldIgnore("api/service.go", false))
}

func TestMatcher_MissingGitignore(t *testing.T) {
	m, err := NewMatcher(nil).WithGitignore(t.TempDir())
	require.NoError(t, err)
	assert.False(t, m.ShouldIgnore("main.go", false))
}

func TestFilter_IncludeExclude(t *testing.T) {
	f := NewFilter(NewMatcher(nil), []string{"*.go", "scripts/**/*.py"}, []string{"internal/legacy/", "*_gen.go"})

	assert.True(t, f.Accept("cmd/main.go"))
	assert.True(t, f.Accept("scripts/tools/run.py"))
	assert.False(t, f.Accept("app.py"))
	assert.False(t, f.Accept("api/types_gen.go"))
	assert.False(t, f.Accept("internal/legacy/old.go"))
	assert.True(t, f.SkipDir("internal/legacy"))
	assert.True(t, f.SkipDir("node_modules"))
	assert.False(t, f.SkipDir("internal"))
}

func TestFilter_NoIncludeAcceptsEverything(t *testing.T) {
	f := NewFilter(nil, nil, nil)
	assert.True(t, f.Accept("src/lib.rs"))
	assert.False(t, f.Accept(".codegraph/cache.db"))
}
