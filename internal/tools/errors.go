package tools

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument marks a structurally invalid tool request. It is the
// only failure a tool returns instead of a partial result.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrUnknownTool is returned by Call for a name no tool is registered under.
var ErrUnknownTool = errors.New("unknown tool")

// ArgumentError describes which argument was rejected.
type ArgumentError struct {
	Field  string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
}

func (e *ArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

func missing(field string) error {
	return &ArgumentError{Field: field, Reason: "required"}
}

// intArg picks the primary value, then its alias, then the default, and
// checks the result against [min, max].
func intArg(field string, primary, alias *int, def, min, max int) (int, error) {
	value := def
	switch {
	case primary != nil:
		value = *primary
	case alias != nil:
		value = *alias
	}
	if value < min || value > max {
		return 0, &ArgumentError{Field: field, Reason: fmt.Sprintf("must be between %d and %d, got %d", min, max, value)}
	}
	return value, nil
}
