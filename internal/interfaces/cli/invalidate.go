package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newInvalidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "invalidate <compound-id>",
		Short:   "Invalidate similarity analyses for a compound",
		Long:    "Mark every current similarity analysis touching the given compound as\nstale. Run this after structure data changes so scores get recomputed.",
		Example: "  pharmaref invalidate 42",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid compound id %q", args[0])
			}
			return runInvalidate(cmd, id)
		},
	}
	return cmd
}

func runInvalidate(cmd *cobra.Command, compoundID int64) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(cmd, cliCtx)
	defer cancel()

	result, err := cliCtx.Client.Similarities().Invalidate(ctx, compoundID)
	if err != nil {
		return fmt.Errorf("invalidation failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Invalidated %d similarity analyses for compound %d\n",
		result.InvalidatedCount, result.CompoundID)
	return nil
}
