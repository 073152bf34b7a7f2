package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/jsongraph/api"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("type-name", "", "")
	fs.String("type-name-template", "", "")
	fs.String("asset-key-suffix", api.DefaultAssetKeySuffix, "")
	fs.Int("jobs", api.DefaultJobs, "")
	fs.String("log-level", api.DefaultLogLevel, "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	res, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "", res.FileUsed)
	assert.Equal(t, api.Options{
		AssetKeySuffix: api.DefaultAssetKeySuffix,
		Jobs:           api.DefaultJobs,
		LogLevel:       api.DefaultLogLevel,
	}, res.Options)
}

func TestLoad_HCLFile(t *testing.T) {
	p := writeFile(t, "jsongraph.hcl", `
type_name        = "Record"
asset_key_suffix = "Asset"
jobs             = 8
`)
	res, err := Load(p, nil)
	require.NoError(t, err)
	assert.Equal(t, p, res.FileUsed)
	assert.Equal(t, "Record", res.Options.TypeName)
	assert.Equal(t, "Asset", res.Options.AssetKeySuffix)
	assert.Equal(t, 8, res.Options.Jobs)
	assert.Equal(t, api.DefaultLogLevel, res.Options.LogLevel)
}

func TestLoad_YAMLFile(t *testing.T) {
	p := writeFile(t, "jsongraph.yaml", `
type_name_template: "{{ pascal .Document.Name }}"
log_level: debug
`)
	res, err := Load(p, nil)
	require.NoError(t, err)
	assert.Equal(t, "{{ pascal .Document.Name }}", res.Options.TypeNameTemplate)
	assert.Equal(t, "debug", res.Options.LogLevel)
	assert.Equal(t, api.DefaultJobs, res.Options.Jobs)
}

func TestLoad_DiscoversFileInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jsongraph.yml"), []byte("jobs: 2\n"), 0o644))
	t.Chdir(dir)

	res, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "jsongraph.yml", res.FileUsed)
	assert.Equal(t, 2, res.Options.Jobs)
}

func TestLoad_Precedence(t *testing.T) {
	p := writeFile(t, "jsongraph.hcl", `
type_name = "FromFile"
jobs      = 8
log_level = "warn"
`)
	t.Setenv("JSONGRAPH_TYPE_NAME", "FromEnv")
	t.Setenv("JSONGRAPH_JOBS", "6")

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--jobs", "3", "--config", p}))

	res, err := Load(p, flags)
	require.NoError(t, err)
	assert.Equal(t, "FromEnv", res.Options.TypeName, "env beats file")
	assert.Equal(t, 3, res.Options.Jobs, "flag beats env")
	assert.Equal(t, "warn", res.Options.LogLevel, "unset flag does not override file")
	assert.Equal(t, api.DefaultAssetKeySuffix, res.Options.AssetKeySuffix)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)

	_, err = Load(writeFile(t, "bad.hcl", `type_name = `), nil)
	require.Error(t, err)

	_, err = Load(writeFile(t, "conf.toml", `x = 1`), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}
