package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/forPelevin/clipforge/internal/config"
	"github.com/forPelevin/clipforge/internal/logging"
)

func Main() {
	os.Exit(Execute(os.Args[1:], os.Stdout, os.Stderr))
}

// Execute runs the command line and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

type rootOptions struct {
	configPath string
	verbose    bool
	analyzer   string
	dataDir    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "clipforge",
		Short:         "Find and cut highlight clips from online videos",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")
	pf.StringVar(&opts.analyzer, "analyzer", "", "Sentiment analyzer: lexicon or openrouter")
	pf.StringVar(&opts.dataDir, "data-dir", "", "Directory for downloaded media, clips and caches")

	root.AddCommand(newServeCmd(opts), newRunCmd(opts))
	return root
}

// load resolves configuration with flags taking precedence over file and env.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.analyzer != "" {
		cfg.Analyzer.Kind = o.analyzer
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr()), nil
}
