package languages

import (
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

var typeScriptTags = []string{
	`(function_declaration name: (identifier) @name.definition.function) @definition.function`,
	`(class_declaration name: (type_identifier) @name.definition.class) @definition.class`,
	`(abstract_class_declaration name: (type_identifier) @name.definition.class) @definition.class`,
	`(interface_declaration name: (type_identifier) @name.definition.interface) @definition.interface`,
	`(enum_declaration name: (identifier) @name.definition.enum) @definition.enum`,
	`(type_alias_declaration name: (type_identifier) @name.definition.type) @definition.type`,
	`(method_definition name: (property_identifier) @name.definition.method) @definition.method`,
	`(method_signature name: (property_identifier) @name.definition.method) @definition.method`,
	`(abstract_method_signature name: (property_identifier) @name.definition.method) @definition.method`,
	`(internal_module name: (identifier) @name.definition.module) @definition.module`,
	`(program (lexical_declaration (variable_declarator name: (identifier) @name.definition.function value: (arrow_function)) @definition.function))`,
	`(program (export_statement (lexical_declaration (variable_declarator name: (identifier) @name.definition.function value: (arrow_function)) @definition.function)))`,
	`(class_declaration name: (type_identifier) @source (class_heritage (extends_clause value: (identifier) @name.reference.inheritance))) @reference.inheritance`,
	`(class_declaration name: (type_identifier) @source (class_heritage (implements_clause (type_identifier) @name.reference.implementation))) @reference.implementation`,
	`(interface_declaration name: (type_identifier) @source (extends_type_clause (type_identifier) @name.reference.inheritance)) @reference.inheritance`,
	`(call_expression function: (identifier) @name.reference.call) @reference.call`,
	`(call_expression function: (member_expression object: (_) @qualifier property: (property_identifier) @name.reference.call)) @reference.call`,
	`(new_expression constructor: (identifier) @name.reference.class) @reference.class`,
	`(type_annotation (type_identifier) @name.reference.type) @reference.type`,
	`(import_statement) @import`,
}

func TypeScript() *parser.Language {
	return &parser.Language{
		ID:         parser.LangTypeScript,
		Extensions: []string{".ts", ".mts", ".cts"},
		Grammar:    typescript.GetLanguage(),
		Queries:    map[string][]string{parser.QueryTags: typeScriptTags},
	}
}

func TSX() *parser.Language {
	return &parser.Language{
		ID:         parser.LangTSX,
		Extensions: []string{".tsx"},
		Grammar:    tsx.GetLanguage(),
		Queries:    map[string][]string{parser.QueryTags: typeScriptTags},
	}
}
