package parser

import "errors"

var (
	// ErrUnsupportedLanguage is returned when no language is registered for a file extension.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrParse is returned when the grammar produced no tree at all.
	ErrParse = errors.New("parse failed")

	// ErrQuery is returned when a language has no usable pattern for a query name.
	ErrQuery = errors.New("query unavailable")

	// ErrExtraction marks a capture set that did not map to a valid symbol.
	ErrExtraction = errors.New("extraction failed")
)
