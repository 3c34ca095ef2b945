package languages

import (
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/smacker/go-tree-sitter/golang"
)

// Go methods name their receiver type through @parent.
func Go() *parser.Language {
	return &parser.Language{
		ID:         parser.LangGo,
		Extensions: []string{".go"},
		Grammar:    golang.GetLanguage(),
		Queries: map[string][]string{
			parser.QueryTags: {
				`(function_declaration name: (identifier) @name.definition.function) @definition.function`,
				`(method_declaration
					receiver: (parameter_list (parameter_declaration type: [(type_identifier) @parent (pointer_type (type_identifier) @parent)]))
					name: (field_identifier) @name.definition.method) @definition.method`,
				`(type_spec name: (type_identifier) @name.definition.struct type: (struct_type)) @definition.struct`,
				`(type_spec name: (type_identifier) @name.definition.interface type: (interface_type)) @definition.interface`,
				`(source_file (const_declaration (const_spec name: (identifier) @name.definition.constant) @definition.constant))`,
				`(source_file (var_declaration (var_spec name: (identifier) @name.definition.variable) @definition.variable))`,
				`(call_expression function: (identifier) @name.reference.call) @reference.call`,
				`(call_expression function: (selector_expression operand: (_) @qualifier field: (field_identifier) @name.reference.call)) @reference.call`,
				`(composite_literal type: (type_identifier) @name.reference.class) @reference.class`,
				`(parameter_declaration type: [(type_identifier) @name.reference.type (pointer_type (type_identifier) @name.reference.type)]) @reference.type`,
				`(import_declaration) @import`,
			},
		},
	}
}
