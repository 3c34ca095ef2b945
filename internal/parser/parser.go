package parser

import (
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// LanguageID tags one supported language.
type LanguageID int

const (
	LangUnknown LanguageID = iota
	LangRust
	LangJavaScript
	LangTypeScript
	LangTSX
	LangPython
	LangGo
	LangCpp
	LangC
	LangCSharp
	LangJava
)

func (id LanguageID) String() string {
	switch id {
	case LangRust:
		return "rust"
	case LangJavaScript:
		return "javascript"
	case LangTypeScript:
		return "typescript"
	case LangTSX:
		return "tsx"
	case LangPython:
		return "python"
	case LangGo:
		return "go"
	case LangCpp:
		return "cpp"
	case LangC:
		return "c"
	case LangCSharp:
		return "csharp"
	case LangJava:
		return "java"
	default:
		return "unknown"
	}
}

// QueryTags is the query every language provides: definitions, references and imports.
const QueryTags = "tags"

// Language is one variant of the supported-language table: its grammar, the
// extensions routed to it and its declarative queries. Each query is a list
// of independent patterns so that one pattern the grammar rejects does not
// disable the rest.
type Language struct {
	ID         LanguageID
	Extensions []string
	Grammar    *sitter.Language
	Queries    map[string][]string
}

// Name returns the language name (e.g., "go", "python")
func (l *Language) Name() string {
	return l.ID.String()
}

// Registry maps file extensions to languages.
type Registry struct {
	languages map[LanguageID]*Language
	extToLang map[string]LanguageID
}

// NewRegistry creates a new parser registry
func NewRegistry() *Registry {
	return &Registry{
		languages: make(map[LanguageID]*Language),
		extToLang: make(map[string]LanguageID),
	}
}

// Register adds a language to the registry. Later registrations win for
// shared extensions.
func (r *Registry) Register(lang *Language) {
	r.languages[lang.ID] = lang
	for _, ext := range lang.Extensions {
		r.extToLang[strings.ToLower(ext)] = lang.ID
	}
}

// ForFile returns the language registered for a file's extension.
func (r *Registry) ForFile(filename string) (*Language, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	id, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	lang, ok := r.languages[id]
	return lang, ok
}

// Get returns a registered language by ID.
func (r *Registry) Get(id LanguageID) (*Language, bool) {
	lang, ok := r.languages[id]
	return lang, ok
}

// Languages returns registered languages ordered by ID.
func (r *Registry) Languages() []*Language {
	out := make([]*Language, 0, len(r.languages))
	for _, lang := range r.languages {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// SupportedExtensions returns all supported file extensions
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
