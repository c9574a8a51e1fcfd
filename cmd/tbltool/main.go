// Command tbltool converts Falcom TBL containers to and from JSON or
// MessagePack, downloads the schemas that describe them, and browses
// decoded tables in the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/wippyai/tbl/codec"
	"github.com/wippyai/tbl/schema"
	"github.com/wippyai/tbl/schema/remote"
)

var logger = zap.NewNop()

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:   "tbltool",
		Usage:  "Tools for working with the Falcom TBL format",
		Flags:  globalFlags(),
		Before: setupLogging,
		After: func(*cli.Context) error {
			_ = logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			tbl2jsonCommand(),
			json2tblCommand(),
			updateCommand(),
			browseCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "schema-dir", Value: "schemas", Usage: "Directory holding <namespace>/<name>.json schema documents", EnvVars: []string{"TBL_SCHEMA_DIR"}},
		&cli.StringFlag{Name: "schema-db", Usage: "Keep schemas in this bbolt database instead of --schema-dir", EnvVars: []string{"TBL_SCHEMA_DB"}},
		&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "Set log level (debug, info, warn, error)", EnvVars: []string{"TBL_LOG_LEVEL"}},
		&cli.IntFlag{Name: "jobs", Usage: "Tables decoded in parallel, 0 for one per CPU", EnvVars: []string{"TBL_JOBS"}},
		&cli.IntFlag{Name: "max-depth", Usage: "Maximum type nesting, 0 for the default", EnvVars: []string{"TBL_MAX_DEPTH"}},
		&cli.StringFlag{Name: "metrics-file", Usage: "Write Prometheus textfile metrics to this path", EnvVars: []string{"TBL_METRICS_FILE"}},
		&cli.BoolFlag{Name: "offline", Usage: "Never download missing schemas", EnvVars: []string{"TBL_OFFLINE"}},
		&cli.StringFlag{Name: "schema-url", Value: remote.DefaultBaseURL, Usage: "GitHub API base URL for schema downloads", EnvVars: []string{"TBL_SCHEMA_URL"}},
		&cli.StringFlag{Name: "github-token", Usage: "Token for schema downloads", EnvVars: []string{"GITHUB_TOKEN"}},
	}
}

func setupLogging(c *cli.Context) error {
	level, err := zap.ParseAtomicLevel(c.String("log-level"))
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = level
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		return err
	}

	logger = l
	schema.SetLogger(l)
	codec.SetLogger(l)
	remote.SetLogger(l)
	return nil
}
