/*
PURPOSE:
  Defines the root Cobra command for the gotest-jtl CLI.
  Handles global flags, logging setup and exit code mapping.

REQUIREMENTS:
  User-specified:
  - Provide a CLI interface.
  - Support global flags like --config.
  - Exit 0 when every test passed, 1 when tests failed, 2 on runtime errors
    (including a run that reported no test).

  Implementation-discovered:
  - Needs to expose an Execute() function for main.go.
  - Logs go to stderr; stdout carries go test output, progress and summary.
  - Commands are built by constructors so tests get fresh flag state.

ARCHITECTURE INTEGRATION:
  - Called by: cmd/gotest-jtl/main.go
  - Calls: Child commands (run, convert)
  - Uses: internal/config, internal/output, internal/exitcodes

ERROR HANDLING:
  - Execute prints one line per fatal error and maps it to an exit code.
  - Test failures are not printed; go test already reported them.

IMPLEMENTATION RULES:
  - Use `PersistentFlags()` for flags available to all subcommands.
  - Keep Run logic in subcommands, Root only prepares config and logging.

USAGE:
  os.Exit(cli.Execute())

SELF-HEALING INSTRUCTIONS:
  - If adding new global flags, add them to NewRootCmd().

RELATED FILES:
  - cmd/gotest-jtl/main.go
  - internal/cli/run.go
  - internal/cli/convert.go

MAINTENANCE:
  - Update when adding global configuration options.
*/

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"

	"github.com/daryltucker/gotest-jtl/internal/config"
	"github.com/daryltucker/gotest-jtl/internal/exitcodes"
	"github.com/daryltucker/gotest-jtl/internal/output"
)

// rootOptions holds the persistent flags.
type rootOptions struct {
	// cfgFile stores the path to the config file (if specified via flag)
	cfgFile   string
	logLevel  string
	logFormat string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "gotest-jtl",
		Short: "Report go test runs as JMeter JTL results",
		Long: `Runs go test and writes two artifacts a performance dashboard can ingest:
a CSV sample log with one row per test, and an XML document with one
diagnostic entry per failed or errored test.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ./gotest-jtl.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: text or json")

	cmd.AddCommand(newRunCmd(opts), newConvertCmd(opts))
	return cmd
}

// Execute executes the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = clog.WithLogger(ctx, output.Logger)

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil && !exitcodes.IsTestFailureError(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return exitcodes.FromError(err)
}

// setup loads the configuration and installs the logger. The returned
// context carries the logger.
func setup(cmd *cobra.Command, opts *rootOptions) (context.Context, *config.Config, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(ctx, opts.cfgFile)
	if err != nil {
		return nil, nil, exitcodes.NewRuntimeError(err)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.LogFormat = opts.logFormat
	}

	logger, err := output.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, exitcodes.NewRuntimeError(err)
	}
	output.SetLogger(logger)
	return clog.WithLogger(ctx, logger), cfg, nil
}
