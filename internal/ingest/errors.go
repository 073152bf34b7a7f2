package ingest

import (
	"errors"
	"fmt"
)

// ErrEmptyTypeName is returned when the configured namer yields "".
var ErrEmptyTypeName = errors.New("empty type name")

// ParseError reports a document whose bytes are not valid JSON.
type ParseError struct {
	Hint string // "file <path>" or "in node <id>"
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse JSON: %s: %v", e.Hint, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// AssetResolutionError reports an asset reference that could not be turned
// into an asset node. It aborts the whole document.
type AssetResolutionError struct {
	Reference string // Value as written in the document
	Path      string // Resolved absolute path
	Err       error
}

func (e *AssetResolutionError) Error() string {
	return fmt.Sprintf("resolve asset %q (%s): %v", e.Reference, e.Path, e.Err)
}

func (e *AssetResolutionError) Unwrap() error { return e.Err }
