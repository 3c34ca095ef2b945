package languages

import (
	"github.com/skelly-dev/codegraph/internal/parser"
	"github.com/smacker/go-tree-sitter/python"
)

func Python() *parser.Language {
	return &parser.Language{
		ID:         parser.LangPython,
		Extensions: []string{".py", ".pyw"},
		Grammar:    python.GetLanguage(),
		Queries: map[string][]string{
			parser.QueryTags: {
				`(class_definition name: (identifier) @name.definition.class) @definition.class`,
				`(function_definition name: (identifier) @name.definition.function) @definition.function`,
				`(module (expression_statement (assignment left: (identifier) @name.definition.variable) @definition.variable))`,
				`(class_definition name: (identifier) @source superclasses: (argument_list (identifier) @name.reference.inheritance)) @reference.inheritance`,
				`(class_definition name: (identifier) @source superclasses: (argument_list (attribute attribute: (identifier) @name.reference.inheritance))) @reference.inheritance`,
				`(call function: (identifier) @name.reference.call) @reference.call`,
				`(call function: (attribute object: (_) @qualifier attribute: (identifier) @name.reference.call)) @reference.call`,
				`(import_statement) @import`,
				`(import_from_statement) @import`,
			},
		},
	}
}
