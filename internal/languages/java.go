package languages

import (
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/smacker/go-tree-sitter/java"
)

func Java() *parser.Language {
	return &parser.Language{
		ID:         parser.LangJava,
		Extensions: []string{".java"},
		Grammar:    java.GetLanguage(),
		Queries: map[string][]string{
			parser.QueryTags: {
				`(class_declaration name: (identifier) @name.definition.class) @definition.class`,
				`(interface_declaration name: (identifier) @name.definition.interface) @definition.interface`,
				`(enum_declaration name: (identifier) @name.definition.enum) @definition.enum`,
				`(record_declaration name: (identifier) @name.definition.class) @definition.class`,
				`(method_declaration name: (identifier) @name.definition.method) @definition.method`,
				`(constructor_declaration name: (identifier) @name.definition.method) @definition.method`,
				`(class_declaration name: (identifier) @source (superclass (type_identifier) @name.reference.inheritance)) @reference.inheritance`,
				`(class_declaration name: (identifier) @source (super_interfaces (type_list (type_identifier) @name.reference.implementation))) @reference.implementation`,
				`(method_invocation name: (identifier) @name.reference.call) @reference.call`,
				`(method_invocation object: (_) @qualifier name: (identifier) @name.reference.call) @reference.call`,
				`(object_creation_expression type: (type_identifier) @name.reference.class) @reference.class`,
				`(import_declaration) @import`,
			},
		},
	}
}
