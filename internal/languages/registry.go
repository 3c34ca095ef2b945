package languages

import "github.com/skelly-dev/codegraph/internal/parser"

// NewDefaultRegistry creates a registry with all supported languages
func NewDefaultRegistry() *parser.Registry {
	r := parser.NewRegistry()

	r.Register(Rust())
	r.Register(JavaScript())
	r.Register(TypeScript())
	r.Register(TSX())
	r.Register(Python())
	r.Register(Go())
	r.Register(C())
	r.Register(Cpp())
	r.Register(CSharp())
	r.Register(Java())

	return r
}
