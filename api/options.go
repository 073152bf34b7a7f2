package api

// Options is the user-facing configuration of the transformer. It can be
// written as HCL (jsongraph.hcl) or YAML (jsongraph.yaml); environment
// variables and CLI flags override it.
type Options struct {
	// TypeName, when set, names every content node verbatim.
	TypeName string `json:"type_name,omitempty" koanf:"type_name" hcl:"type_name,optional"`
	// TypeNameTemplate is a Go text/template that derives the type name
	// from the document and the record. It takes precedence over TypeName.
	TypeNameTemplate string `json:"type_name_template,omitempty" koanf:"type_name_template" hcl:"type_name_template,optional"`
	// AssetKeySuffix names the sibling key that links an asset reference to
	// its asset node ("cover" -> "cover-image").
	AssetKeySuffix string `json:"asset_key_suffix,omitempty" koanf:"asset_key_suffix" hcl:"asset_key_suffix,optional"`
	// Jobs bounds how many documents are ingested concurrently.
	Jobs int `json:"jobs,omitempty" koanf:"jobs" hcl:"jobs,optional"`
	// LogLevel is one of trace, debug, info, warn, error, off.
	LogLevel string `json:"log_level,omitempty" koanf:"log_level" hcl:"log_level,optional"`
}

const (
	DefaultAssetKeySuffix = "-image"
	DefaultJobs           = 4
	DefaultLogLevel       = "info"
)

// ApplyDefaults fills unset fields.
func (o *Options) ApplyDefaults() {
	if o.AssetKeySuffix == "" {
		o.AssetKeySuffix = DefaultAssetKeySuffix
	}
	if o.Jobs <= 0 {
		o.Jobs = DefaultJobs
	}
	if o.LogLevel == "" {
		o.LogLevel = DefaultLogLevel
	}
}
