package catalog

import "fmt"

// SchemaError reports a required catalog column that is missing.
type SchemaError struct {
	File   string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("catalog %s: missing required column %q", e.File, e.Column)
}

// ParseError reports a catalog value that could not be parsed.
type ParseError struct {
	File   string
	Line   int
	Column string
	Value  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("catalog %s:%d: invalid %s %q", e.File, e.Line, e.Column, e.Value)
}
