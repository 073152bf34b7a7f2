package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/agentic-research/jsongraph/api"
	"github.com/agentic-research/jsongraph/internal/config"
	"github.com/agentic-research/jsongraph/internal/graph"
	"github.com/agentic-research/jsongraph/internal/ingest"
)

// Version is stamped at build time.
var Version = "dev"

var (
	cfgFile string
	opts    api.Options
	logger  = hclog.NewNullLogger()
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "Config file (.hcl, .yaml); defaults to ./jsongraph.{hcl,yaml,yml}")
	pf.String("log-level", api.DefaultLogLevel, "trace, debug, info, warn, error or off")
	pf.String("type-name", "", "Literal type name for every content node")
	pf.String("type-name-template", "", "Go template deriving the type name, e.g. '{{ pascal .Document.Name }}'")
	pf.String("asset-key-suffix", api.DefaultAssetKeySuffix, "Suffix of the key linking an asset reference to its node")
	pf.IntP("jobs", "j", api.DefaultJobs, "Documents ingested concurrently")
}

var rootCmd = &cobra.Command{
	Use:           "jsongraph",
	Short:         "Turn JSON documents into a graph of typed, content-addressed nodes",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		res, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		opts = res.Options

		logger, err = newLogger(opts.LogLevel, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if res.FileUsed != "" {
			logger.Debug("loaded config", "file", res.FileUsed)
		}
		return nil
	},
}

func newLogger(level string, w io.Writer) (hclog.Logger, error) {
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "jsongraph",
		Level:  lvl,
		Output: w,
	}), nil
}

// newEngine wires an engine that reads documents and assets below source.
// The returned filesystem is rooted at source.
func newEngine(source string, store graph.NodeStore) (*ingest.Engine, billy.Filesystem, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return nil, nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, nil, err
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%s is not a directory", source)
	}

	o := opts
	e, err := ingest.NewEngine(&o, store)
	if err != nil {
		return nil, nil, err
	}
	fs := osfs.New(abs)
	e.Loader = ingest.FSLoader{FS: fs}
	e.Materializer = ingest.FSMaterializer{FS: fs}
	e.Logger = logger.Named("ingest")
	return e, fs, nil
}

// ingestTree discovers every document below the root of fs and ingests it.
func ingestTree(ctx context.Context, e *ingest.Engine, fs billy.Filesystem, ids graph.IdentityFactory) (int, error) {
	docs, err := ingest.Discover(fs, "/", ids)
	if err != nil {
		return 0, fmt.Errorf("discover %s: %w", fs.Root(), err)
	}
	n := 0
	for _, d := range docs {
		if d.IsJSON() {
			n++
		}
	}
	logger.Debug("discovered documents", "json", n, "total", len(docs))
	return n, e.IngestAll(ctx, docs)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
