package parser

import (
	"fmt"
	"strings"
)

// SymbolKind represents the type of code symbol
type SymbolKind int

const (
	SymbolFunction SymbolKind = iota
	SymbolMethod
	SymbolClass
	SymbolStruct
	SymbolInterface
	SymbolEnum
	SymbolModule
	SymbolConstant
	SymbolVariable
)

var symbolKindNames = [...]string{
	SymbolFunction:  "function",
	SymbolMethod:    "method",
	SymbolClass:     "class",
	SymbolStruct:    "struct",
	SymbolInterface: "interface",
	SymbolEnum:      "enum",
	SymbolModule:    "module",
	SymbolConstant:  "constant",
	SymbolVariable:  "variable",
}

func (k SymbolKind) String() string {
	if k < 0 || int(k) >= len(symbolKindNames) {
		return "unknown"
	}
	return symbolKindNames[k]
}

// DisplayName is the capitalized kind used in tool output ("Function", "Class").
func (k SymbolKind) DisplayName() string {
	name := k.String()
	return strings.ToUpper(name[:1]) + name[1:]
}

// IsType reports whether symbols of this kind can own methods.
func (k SymbolKind) IsType() bool {
	switch k {
	case SymbolClass, SymbolStruct, SymbolInterface, SymbolEnum:
		return true
	}
	return false
}

func (k SymbolKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *SymbolKind) UnmarshalText(text []byte) error {
	parsed, ok := ParseSymbolKind(string(text))
	if !ok {
		return fmt.Errorf("unknown symbol kind %q", string(text))
	}
	*k = parsed
	return nil
}

// ParseSymbolKind accepts kind names case-insensitively, including the
// capture-name spellings used by query files ("type", "trait", "namespace").
func ParseSymbolKind(value string) (SymbolKind, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "function", "func", "fn", "macro":
		return SymbolFunction, true
	case "method", "constructor":
		return SymbolMethod, true
	case "class", "type", "record":
		return SymbolClass, true
	case "struct", "union":
		return SymbolStruct, true
	case "interface", "trait", "protocol":
		return SymbolInterface, true
	case "enum":
		return SymbolEnum, true
	case "module", "namespace", "mod", "package":
		return SymbolModule, true
	case "constant", "const":
		return SymbolConstant, true
	case "variable", "var", "field", "static":
		return SymbolVariable, true
	}
	return 0, false
}

// EdgeType is the relation carried by an edge. The declaration order is the
// traversal priority used to break ties.
type EdgeType int

const (
	EdgeCall EdgeType = iota
	EdgeInherits
	EdgeImplements
	EdgeReference
)

func (t EdgeType) String() string {
	switch t {
	case EdgeCall:
		return "Call"
	case EdgeInherits:
		return "Inherits"
	case EdgeImplements:
		return "Implements"
	case EdgeReference:
		return "Reference"
	default:
		return "Unknown"
	}
}

func (t EdgeType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *EdgeType) UnmarshalText(text []byte) error {
	parsed, ok := ParseEdgeType(string(text))
	if !ok {
		return fmt.Errorf("unknown edge type %q", string(text))
	}
	*t = parsed
	return nil
}

// ParseEdgeType maps both edge names and the reference suffixes used in
// query captures ("call", "inheritance", "implementation") to an EdgeType.
func ParseEdgeType(value string) (EdgeType, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "call", "calls", "send":
		return EdgeCall, true
	case "inherits", "inheritance", "superclass", "extends":
		return EdgeInherits, true
	case "implements", "implementation":
		return EdgeImplements, true
	case "reference", "references", "usage", "class", "type", "interface":
		return EdgeReference, true
	}
	return 0, false
}

// Symbol is one definition extracted from a file. Nesting is expressed
// through Parent, which holds the FQN of the enclosing symbol.
type Symbol struct {
	FQN       string     `json:"fqn"`
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	File      string     `json:"file"`
	StartLine int        `json:"start_line"`
	EndLine   int        `json:"end_line"`
	Parent    string     `json:"parent,omitempty"`
	Signature string     `json:"signature,omitempty"`
}

// Contains reports whether other's line range lies within s.
func (s Symbol) Contains(other Symbol) bool {
	return s.File == other.File && s.StartLine <= other.StartLine && other.EndLine <= s.EndLine
}

// Edge is a typed relation discovered at a reference site. Target is empty
// while the edge is unresolved; TargetName is always kept for later matching.
type Edge struct {
	Source     string   `json:"source"`
	Target     string   `json:"target,omitempty"`
	TargetName string   `json:"target_name"`
	Qualifier  string   `json:"qualifier,omitempty"`
	Type       EdgeType `json:"type"`
	File       string   `json:"file"`
	Line       int      `json:"line"`
	Column     int      `json:"column"`
}

// Resolved reports whether the edge points at a known symbol.
func (e Edge) Resolved() bool {
	return e.Target != ""
}

// FileSymbols holds all symbols extracted from a single file
type FileSymbols struct {
	Path     string   `json:"path"`
	Language string   `json:"language"`
	Symbols  []Symbol `json:"symbols,omitempty"`
	Edges    []Edge   `json:"edges,omitempty"`
	Imports  []string `json:"imports,omitempty"` // import statements collapsed to one line
	Hash     string   `json:"hash"`              // file content hash for incremental updates
	Skipped  int      `json:"skipped,omitempty"` // captures that did not form a valid symbol
	HasError bool     `json:"has_error,omitempty"`
}

// ParseIssue captures non-fatal parser warnings/errors encountered while scanning files.
type ParseIssue struct {
	File     string `json:"file"`
	Language string `json:"language,omitempty"`
	Severity string `json:"severity"` // warning | error
	Message  string `json:"message"`
}
