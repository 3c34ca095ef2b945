package languages

import (
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/smacker/go-tree-sitter/csharp"
)

// C# base lists do not say whether a base is a class or an interface; the
// graph turns Inherits into Implements once the target resolves to an interface.
func CSharp() *parser.Language {
	return &parser.Language{
		ID:         parser.LangCSharp,
		Extensions: []string{".cs"},
		Grammar:    csharp.GetLanguage(),
		Queries: map[string][]string{
			parser.QueryTags: {
				`(namespace_declaration name: (_) @name.definition.module) @definition.module`,
				`(class_declaration name: (identifier) @name.definition.class) @definition.class`,
				`(struct_declaration name: (identifier) @name.definition.struct) @definition.struct`,
				`(interface_declaration name: (identifier) @name.definition.interface) @definition.interface`,
				`(enum_declaration name: (identifier) @name.definition.enum) @definition.enum`,
				`(record_declaration name: (identifier) @name.definition.class) @definition.class`,
				`(method_declaration name: (identifier) @name.definition.method) @definition.method`,
				`(constructor_declaration name: (identifier) @name.definition.method) @definition.method`,
				`(class_declaration name: (identifier) @source (base_list (identifier) @name.reference.inheritance)) @reference.inheritance`,
				`(struct_declaration name: (identifier) @source (base_list (identifier) @name.reference.implementation)) @reference.implementation`,
				`(interface_declaration name: (identifier) @source (base_list (identifier) @name.reference.inheritance)) @reference.inheritance`,
				`(invocation_expression function: (identifier) @name.reference.call) @reference.call`,
				`(invocation_expression function: (member_access_expression expression: (_) @qualifier name: (identifier) @name.reference.call)) @reference.call`,
				`(object_creation_expression type: (identifier) @name.reference.class) @reference.class`,
				`(using_directive) @import`,
			},
		},
	}
}
