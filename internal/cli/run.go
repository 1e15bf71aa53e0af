/*
PURPOSE:
  Defines the 'run' subcommand.
  Runs go test on the given targets and writes both report artifacts.

REQUIREMENTS:
  User-specified:
  - Two output paths plus target specifiers.
  - specific flags for overrides.

  Implementation-discovered:
  - Need to load config first.
  - Apply flag overrides to config.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Runner.Run()
  - Uses: internal/config

ERROR HANDLING:
  - Returns error if config load fails or the run fails.
  - Test failures come back as exitcodes.TestFailureError.

IMPLEMENTATION RULES:
  - Logic: Load Config -> Override -> Runner.Run.

USAGE:
  gotest-jtl run -s samples.jtl -e errors.jtl ./...

SELF-HEALING INSTRUCTIONS:
  - Check flag names match Config struct fields generally.

RELATED FILES:
  - internal/cli/root.go
  - internal/cli/convert.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/daryltucker/gotest-jtl/internal/config"
	"github.com/daryltucker/gotest-jtl/internal/engine"
)

// outputOptions are the overrides shared by run and convert.
type outputOptions struct {
	samples     string
	errors      string
	outputDir   string
	events      string
	metricsFile string
	summary     bool
	noProgress  bool
}

func (o *outputOptions) register(fs *pflag.FlagSet) {
	fs.StringVarP(&o.samples, "samples", "s", "", "Sample log path (CSV, one row per test)")
	fs.StringVarP(&o.errors, "errors", "e", "", "Diagnostic document path (XML, one entry per failed test)")
	fs.StringVarP(&o.outputDir, "output-dir", "o", "", "Directory relative output paths are resolved against")
	fs.StringVar(&o.events, "events", "", "Keep a copy of the raw go test -json stream in this file")
	fs.StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this file")
	fs.BoolVar(&o.summary, "summary", false, "Print a per thread group summary table at the end")
	fs.BoolVar(&o.noProgress, "no-progress", false, "Do not print a progress line per test")
}

func (o *outputOptions) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if o.samples != "" {
		cfg.SamplesFile = o.samples
	}
	if o.errors != "" {
		cfg.ErrorsFile = o.errors
	}
	if o.outputDir != "" {
		cfg.OutputDir = o.outputDir
	}
	if o.events != "" {
		cfg.EventsFile = o.events
	}
	if o.metricsFile != "" {
		cfg.MetricsFile = o.metricsFile
	}
	if fs.Changed("summary") {
		cfg.Summary = o.summary
	}
	if fs.Changed("no-progress") {
		cfg.Progress = !o.noProgress
	}
}

func newRunCmd(root *rootOptions) *cobra.Command {
	var (
		out       outputOptions
		runFilter string
		goBinary  string
		timeout   time.Duration
		flags     []string
	)

	cmd := &cobra.Command{
		Use:   "run [flags] [packages...]",
		Short: "Run go test and report it",
		Long: `Runs 'go test -json -v' on the given packages (default ./...) and
reports every test as it finishes. Tests are reported in completion order;
parallel tests and subtests are each reported as their own sample.

Exit codes: 0 all tests passed or skipped, 1 tests failed, 2 the reporter
failed or no test was run.`,
		Example: `  # Run every package, writing samples.jtl and errors.jtl
  gotest-jtl run

  # Choose the outputs and the packages
  gotest-jtl run -s out/samples.jtl -e out/errors.jtl ./pkg/... ./cmd/...

  # Only some tests, with the race detector and a summary table
  gotest-jtl run --run 'TestAPI' --test-flag=-race --summary`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// 1. Load Config
			ctx, cfg, err := setup(cmd, root)
			if err != nil {
				return err
			}

			// 2. Overrides
			fs := cmd.Flags()
			out.apply(fs, cfg)
			if runFilter != "" {
				cfg.Run = runFilter
			}
			if goBinary != "" {
				cfg.GoBinary = goBinary
			}
			if fs.Changed("timeout") {
				cfg.Timeout = timeout
			}
			if len(flags) > 0 {
				cfg.TestFlags = flags
			}

			// 3. Execution
			r := engine.New(cfg)
			r.Stdout, r.Stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()
			_, err = r.Run(ctx, args)
			return err
		},
	}

	fs := cmd.Flags()
	out.register(fs)
	fs.StringVar(&runFilter, "run", "", "Run only tests matching the regular expression (go test -run)")
	fs.StringVar(&goBinary, "go", "", "go binary to invoke")
	fs.DurationVar(&timeout, "timeout", 0, "go test -timeout; 0 keeps the go default")
	fs.StringArrayVar(&flags, "test-flag", nil, "Extra flag passed to go test (repeatable)")
	return cmd
}
