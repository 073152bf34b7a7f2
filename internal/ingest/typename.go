package ingest

import (
	"bytes"
	"fmt"
	"path"
	"text/template"

	"github.com/agentic-research/jsongraph/api"
	"github.com/agentic-research/jsongraph/internal/jsonvalue"
)

// TypeNamer derives the type name of the content node built from unit.
// isArray reports whether unit is an element of a top-level array.
// Implementations must be pure and safe for concurrent use.
type TypeNamer interface {
	TypeName(doc *api.SourceDocument, unit jsonvalue.Value, isArray bool) string
}

// LiteralName names every node with the same string.
type LiteralName string

func (n LiteralName) TypeName(*api.SourceDocument, jsonvalue.Value, bool) string { return string(n) }

// DerivedName computes the name with a caller-supplied function. The result
// is used verbatim.
type DerivedName func(doc *api.SourceDocument, unit jsonvalue.Value, isArray bool) string

func (f DerivedName) TypeName(doc *api.SourceDocument, unit jsonvalue.Value, isArray bool) string {
	return f(doc, unit, isArray)
}

// ConventionName is the default naming chain:
//   - a document whose kind is not "File" is named after its kind;
//   - an array element is named after the document's short name;
//   - anything else is named after the document's directory.
//
// The chosen word gets a "Json" suffix and is PascalCased.
type ConventionName struct{}

func (ConventionName) TypeName(doc *api.SourceDocument, _ jsonvalue.Value, isArray bool) string {
	switch {
	case doc.Kind != api.KindFile:
		return PascalCase(doc.Kind + " Json")
	case isArray:
		return PascalCase(doc.Name + " Json")
	default:
		return PascalCase(path.Base(doc.Dir) + " Json")
	}
}

// TemplateData is what a type_name_template sees.
type TemplateData struct {
	Document *api.SourceDocument
	Record   any // the unit in generic form (map[string]any, []any, ...)
	IsArray  bool
}

var templateFuncs = template.FuncMap{
	"pascal": PascalCase,
	"base":   path.Base,
}

// templateName renders a text/template per unit. A failed render yields ""
// which the builder rejects.
type templateName struct {
	tmpl *template.Template
}

// NewTemplateName compiles a type-name template, e.g.
// `{{ pascal .Document.Name }}{{ if .IsArray }}Item{{ end }}`.
func NewTemplateName(text string) (TypeNamer, error) {
	t, err := template.New("type_name").Funcs(templateFuncs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse type_name_template: %w", err)
	}
	return templateName{tmpl: t}, nil
}

func (n templateName) TypeName(doc *api.SourceDocument, unit jsonvalue.Value, isArray bool) string {
	var buf bytes.Buffer
	data := TemplateData{Document: doc, Record: unit.Interface(), IsArray: isArray}
	if err := n.tmpl.Execute(&buf, data); err != nil {
		return ""
	}
	return buf.String()
}

// NewTypeNamer picks the naming strategy once, from configuration:
// a template (function) wins over a literal, which wins over the
// convention chain.
func NewTypeNamer(opts *api.Options) (TypeNamer, error) {
	switch {
	case opts == nil:
		return ConventionName{}, nil
	case opts.TypeNameTemplate != "":
		return NewTemplateName(opts.TypeNameTemplate)
	case opts.TypeName != "":
		return LiteralName(opts.TypeName), nil
	default:
		return ConventionName{}, nil
	}
}
