package parser

import (
	"testing"

	"github.com/smacker/go-tree-sitter/python"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryForFile(t *testing.T) {
	r := NewRegistry()
	r.Register(&Language{ID: LangPython, Extensions: []string{".py", ".pyw"}})
	r.Register(&Language{ID: LangGo, Extensions: []string{".go"}})

	lang, ok := r.ForFile("pkg/demo.PY")
	require.True(t, ok, "extension lookup is case-insensitive")
	assert.Equal(t, "python", lang.Name())

	lang, ok = r.ForFile("main.go")
	require.True(t, ok)
	assert.Equal(t, LangGo, lang.ID)

	_, ok = r.ForFile("README.md")
	assert.False(t, ok)
	_, ok = r.ForFile("Makefile")
	assert.False(t, ok)
}

func TestRegistryLaterRegistrationWins(t *testing.T) {
	r := NewRegistry()
	r.Register(&Language{ID: LangC, Extensions: []string{".c", ".h"}})
	r.Register(&Language{ID: LangCpp, Extensions: []string{".cpp", ".h"}})

	lang, ok := r.ForFile("util.h")
	require.True(t, ok)
	assert.Equal(t, LangCpp, lang.ID)

	lang, ok = r.ForFile("util.c")
	require.True(t, ok)
	assert.Equal(t, LangC, lang.ID)
}

func TestRegistryListings(t *testing.T) {
	r := NewRegistry()
	r.Register(&Language{ID: LangGo, Extensions: []string{".go"}})
	r.Register(&Language{ID: LangRust, Extensions: []string{".rs"}})

	langs := r.Languages()
	require.Len(t, langs, 2)
	assert.Equal(t, LangRust, langs[0].ID)
	assert.Equal(t, LangGo, langs[1].ID)
	assert.Equal(t, []string{".go", ".rs"}, r.SupportedExtensions())

	_, ok := r.Get(LangJava)
	assert.False(t, ok)
}

func TestLanguageIDNames(t *testing.T) {
	assert.Equal(t, "csharp", LangCSharp.String())
	assert.Equal(t, "tsx", LangTSX.String())
	assert.Equal(t, "unknown", LangUnknown.String())
}

func TestBaseFQN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Foo.Bar", "Foo.Bar"},
		{"Foo.Bar@a.cs", "Foo.Bar"},
		{"Foo#3.Bar#12", "Foo.Bar"},
		{"Foo#3.Bar#12@src/a.cs", "Foo.Bar"},
		{"op#", "op#"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BaseFQN(tt.in), tt.in)
	}
	assert.Equal(t, "Foo.Bar#7@x.py", QualifyFQN(WithLine(JoinFQN("Foo", "Bar"), 7), "x.py"))
	assert.Equal(t, "Bar", JoinFQN("", "Bar"))
}

func TestComputeEdit(t *testing.T) {
	oldSrc := []byte("def a():\n    return 1\n")
	newSrc := []byte("def a():\n    return 42\n")

	edit := ComputeEdit(oldSrc, newSrc)
	assert.EqualValues(t, 20, edit.StartIndex)
	assert.EqualValues(t, 21, edit.OldEndIndex)
	assert.EqualValues(t, 22, edit.NewEndIndex)
	assert.EqualValues(t, 1, edit.StartPoint.Row)
	assert.EqualValues(t, 11, edit.StartPoint.Column)
	assert.EqualValues(t, 1, edit.NewEndPoint.Row)
	assert.EqualValues(t, 13, edit.NewEndPoint.Column)
}

func TestComputeEditIdenticalInput(t *testing.T) {
	src := []byte("x = 1\n")
	edit := ComputeEdit(src, src)
	assert.Equal(t, edit.StartIndex, edit.OldEndIndex)
	assert.Equal(t, edit.StartIndex, edit.NewEndIndex)
}

func TestDigest(t *testing.T) {
	a := Digest([]byte("one"))
	assert.Len(t, a, 16)
	assert.Equal(t, a, Digest([]byte("one")))
	assert.NotEqual(t, a, Digest([]byte("two")))
}

func TestParseSymbolKind(t *testing.T) {
	kind, ok := ParseSymbolKind("class")
	require.True(t, ok)
	assert.Equal(t, SymbolClass, kind)

	_, ok = ParseSymbolKind("widget")
	assert.False(t, ok)
}

func TestCompilePatternsDropsRejectedPatterns(t *testing.T) {
	q, dropped := compilePatterns([]string{
		`(function_definition name: (identifier) @name)`,
		`(no_such_node) @broken`,
		`(class_definition name: (identifier) @name)`,
	}, python.GetLanguage())
	require.NotNil(t, q)
	assert.Equal(t, []int{1}, dropped)

	q, dropped = compilePatterns([]string{`(no_such_node) @broken`}, python.GetLanguage())
	assert.Nil(t, q)
	assert.Equal(t, []int{0}, dropped)
}
