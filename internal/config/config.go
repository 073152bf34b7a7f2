// Package config loads api.Options from defaults, a config file, the
// environment and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/agentic-research/jsongraph/api"
)

// EnvPrefix prefixes environment overrides: JSONGRAPH_TYPE_NAME -> type_name.
const EnvPrefix = "JSONGRAPH_"

// DefaultFiles are looked up in the working directory, in order, when no
// config file is given.
var DefaultFiles = []string{"jsongraph.hcl", "jsongraph.yaml", "jsongraph.yml"}

// flagKeys maps flag names whose config key is not the snake_case form of
// the flag.
var flagKeys = map[string]string{
	"config": "", // Consumed by Load itself
}

// Result is a loaded configuration and the file it came from ("" if none).
type Result struct {
	Options  api.Options
	FileUsed string
}

// Load layers configuration. Precedence (highest to lowest):
// flags > env vars > config file > defaults.
// Only flags that were explicitly set take part.
func Load(cfgFile string, flags *pflag.FlagSet) (*Result, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"asset_key_suffix": api.DefaultAssetKeySuffix,
		"jobs":             api.DefaultJobs,
		"log_level":        api.DefaultLogLevel,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := loadFile(k, used); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Environment
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if mapped, ok := flagKeys[f.Name]; ok {
				key = mapped
			}
			if key == "" {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var res Result
	if err := k.Unmarshal("", &res.Options); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	res.Options.ApplyDefaults()
	res.FileUsed = used
	return &res, nil
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range DefaultFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

func loadFile(k *koanf.Koanf, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		m, err := decodeHCL(path)
		if err != nil {
			return err
		}
		return k.Load(confmap.Provider(m, "."), nil)
	case ".yaml", ".yml":
		return k.Load(file.Provider(path), yaml.Parser())
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

// decodeHCL reads top-level attributes of an HCL file into a koanf map.
// Attributes that are absent from the file stay absent from the map.
func decodeHCL(path string) (map[string]any, error) {
	var o api.Options
	if err := hclsimple.DecodeFile(path, nil, &o); err != nil {
		return nil, err
	}
	m := make(map[string]any)
	set := func(key, v string) {
		if v != "" {
			m[key] = v
		}
	}
	set("type_name", o.TypeName)
	set("type_name_template", o.TypeNameTemplate)
	set("asset_key_suffix", o.AssetKeySuffix)
	set("log_level", o.LogLevel)
	if o.Jobs != 0 {
		m["jobs"] = o.Jobs
	}
	return m, nil
}
