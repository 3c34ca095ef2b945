package languages

import (
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/smacker/go-tree-sitter/rust"
)

// Rust impl blocks are scopes only: functions inside become methods of the
// implemented type, and a trait impl records an Implements edge from it.
func Rust() *parser.Language {
	return &parser.Language{
		ID:         parser.LangRust,
		Extensions: []string{".rs"},
		Grammar:    rust.GetLanguage(),
		Queries: map[string][]string{
			parser.QueryTags: {
				`(struct_item name: (type_identifier) @name.definition.struct) @definition.struct`,
				`(enum_item name: (type_identifier) @name.definition.enum) @definition.enum`,
				`(union_item name: (type_identifier) @name.definition.struct) @definition.struct`,
				`(trait_item name: (type_identifier) @name.definition.interface) @definition.interface`,
				`(type_item name: (type_identifier) @name.definition.type) @definition.type`,
				`(function_item name: (identifier) @name.definition.function) @definition.function`,
				`(function_signature_item name: (identifier) @name.definition.method) @definition.method`,
				`(mod_item name: (identifier) @name.definition.module) @definition.module`,
				`(const_item name: (identifier) @name.definition.constant) @definition.constant`,
				`(static_item name: (identifier) @name.definition.variable) @definition.variable`,
				`(macro_definition name: (identifier) @name.definition.macro) @definition.macro`,
				`(impl_item type: (type_identifier) @name.definition.impl) @definition.impl`,
				`(impl_item type: (generic_type type: (type_identifier) @name.definition.impl)) @definition.impl`,
				`(impl_item trait: (type_identifier) @name.reference.implementation type: (type_identifier) @source) @reference.implementation`,
				`(call_expression function: (identifier) @name.reference.call) @reference.call`,
				`(call_expression function: (field_expression value: (_) @qualifier field: (field_identifier) @name.reference.call)) @reference.call`,
				`(call_expression function: (scoped_identifier path: (_) @qualifier name: (identifier) @name.reference.call)) @reference.call`,
				`(macro_invocation macro: (identifier) @name.reference.call) @reference.call`,
				`(struct_expression name: (type_identifier) @name.reference.class) @reference.class`,
				`(use_declaration) @import`,
			},
		},
	}
}
