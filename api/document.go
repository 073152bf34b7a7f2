// Package api holds the types shared between the transformer and its hosts.
package api

const (
	// MediaTypeJSON is the only media type the transformer processes.
	MediaTypeJSON = "application/json"
	// KindFile is the declared kind of documents backed by a plain file.
	KindFile = "File"
)

// SourceDocument describes one JSON-bearing unit handed to the transformer.
// It is never mutated.
type SourceDocument struct {
	ID        string // Stable identity of the source node, assigned by the host
	Origin    string // Component that produced the document
	MediaType string
	Kind      string // Declared node kind; KindFile for file-backed documents
	Name      string // Short name, e.g. the file name without extension
	Dir       string // Containing directory
	Path      string // Absolute path within the host filesystem; optional
}

// IsJSON reports whether the document declares the JSON media type.
func (d *SourceDocument) IsJSON() bool {
	return d != nil && d.MediaType == MediaTypeJSON
}

// Hint identifies the document in error messages: by path when it has
// one, by identity otherwise.
func (d *SourceDocument) Hint() string {
	if d.Path != "" {
		return "file " + d.Path
	}
	return "in node " + d.ID
}
