package languages

import (
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/smacker/go-tree-sitter/javascript"
)

func JavaScript() *parser.Language {
	return &parser.Language{
		ID:         parser.LangJavaScript,
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		Grammar:    javascript.GetLanguage(),
		Queries: map[string][]string{
			parser.QueryTags: {
				`(function_declaration name: (identifier) @name.definition.function) @definition.function`,
				`(generator_function_declaration name: (identifier) @name.definition.function) @definition.function`,
				`(class_declaration name: (identifier) @name.definition.class) @definition.class`,
				`(method_definition name: (property_identifier) @name.definition.method) @definition.method`,
				`(program (lexical_declaration (variable_declarator name: (identifier) @name.definition.function value: (arrow_function)) @definition.function))`,
				`(program (export_statement (lexical_declaration (variable_declarator name: (identifier) @name.definition.function value: (arrow_function)) @definition.function)))`,
				`(class_declaration name: (identifier) @source (class_heritage (identifier) @name.reference.inheritance)) @reference.inheritance`,
				`(call_expression function: (identifier) @name.reference.call) @reference.call`,
				`(call_expression function: (member_expression object: (_) @qualifier property: (property_identifier) @name.reference.call)) @reference.call`,
				`(new_expression constructor: (identifier) @name.reference.class) @reference.class`,
				`(import_statement) @import`,
			},
		},
	}
}
