package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/daryltucker/gotest-jtl/internal/engine"
	"github.com/daryltucker/gotest-jtl/internal/exitcodes"
)

func newConvertCmd(root *rootOptions) *cobra.Command {
	var out outputOptions

	cmd := &cobra.Command{
		Use:   "convert [file|-]",
		Short: "Report a saved go test -json stream",
		Long: `Builds the sample log and the diagnostic document from a saved
'go test -json' stream, for example one kept with 'run --events'.
Reads stdin when the file is '-' or missing.`,
		Example: `  go test -json ./... | gotest-jtl convert
  gotest-jtl convert -o reports events.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, err := setup(cmd, root)
			if err != nil {
				return err
			}
			out.apply(cmd.Flags(), cfg)

			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return exitcodes.NewRuntimeError(fmt.Errorf("failed to open event stream: %w", err))
				}
				defer f.Close()
				in = f
			}

			r := engine.New(cfg)
			r.Stdout, r.Stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()
			_, err = r.Convert(ctx, in)
			return err
		},
	}

	out.register(cmd.Flags())
	return cmd
}
