package languages

import (
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
)

// Out-of-class member definitions (void Foo::bar() {}) name their class
// through @parent.
func Cpp() *parser.Language {
	return &parser.Language{
		ID:         parser.LangCpp,
		Extensions: []string{".cpp", ".cc", ".cxx", ".c++", ".hpp", ".hh", ".hxx", ".h++", ".h"},
		Grammar:    cpp.GetLanguage(),
		Queries: map[string][]string{
			parser.QueryTags: {
				`(namespace_definition name: (_) @name.definition.module) @definition.module`,
				`(class_specifier name: (type_identifier) @name.definition.class body: (field_declaration_list)) @definition.class`,
				`(struct_specifier name: (type_identifier) @name.definition.struct body: (field_declaration_list)) @definition.struct`,
				`(enum_specifier name: (type_identifier) @name.definition.enum body: (enumerator_list)) @definition.enum`,
				`(function_definition declarator: (function_declarator declarator: (identifier) @name.definition.function)) @definition.function`,
				`(function_definition declarator: (function_declarator declarator: (field_identifier) @name.definition.method)) @definition.method`,
				`(function_definition declarator: (function_declarator declarator: (qualified_identifier scope: (_) @parent name: (identifier) @name.definition.method))) @definition.method`,
				`(field_declaration declarator: (function_declarator declarator: (field_identifier) @name.definition.method)) @definition.method`,
				`(class_specifier name: (type_identifier) @source (base_class_clause (type_identifier) @name.reference.inheritance)) @reference.inheritance`,
				`(struct_specifier name: (type_identifier) @source (base_class_clause (type_identifier) @name.reference.inheritance)) @reference.inheritance`,
				`(call_expression function: (identifier) @name.reference.call) @reference.call`,
				`(call_expression function: (field_expression argument: (_) @qualifier field: (field_identifier) @name.reference.call)) @reference.call`,
				`(call_expression function: (qualified_identifier scope: (_) @qualifier name: (identifier) @name.reference.call)) @reference.call`,
				`(preproc_include) @import`,
			},
		},
	}
}

func C() *parser.Language {
	return &parser.Language{
		ID:         parser.LangC,
		Extensions: []string{".c"},
		Grammar:    c.GetLanguage(),
		Queries: map[string][]string{
			parser.QueryTags: {
				`(function_definition declarator: (function_declarator declarator: (identifier) @name.definition.function)) @definition.function`,
				`(function_definition declarator: (pointer_declarator declarator: (function_declarator declarator: (identifier) @name.definition.function))) @definition.function`,
				`(struct_specifier name: (type_identifier) @name.definition.struct body: (field_declaration_list)) @definition.struct`,
				`(enum_specifier name: (type_identifier) @name.definition.enum body: (enumerator_list)) @definition.enum`,
				`(type_definition type: (struct_specifier) declarator: (type_identifier) @name.definition.struct) @definition.struct`,
				`(call_expression function: (identifier) @name.reference.call) @reference.call`,
				`(preproc_include) @import`,
			},
		},
	}
}
