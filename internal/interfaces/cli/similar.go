package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pharmaref/pharmaref/pkg/client"
)

type similarOptions struct {
	minScore float64
	limit    int
}

// similarView renders a similarity neighborhood as a table.
type similarView struct {
	*client.SimilarCompoundsResponse
}

func (v similarView) TableHeaders() []string {
	return []string{"COMPOUND ID", "STANDARD NAME", "FORMULA", "SCORE", "METHOD"}
}

func (v similarView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.SimilarCompounds))
	for _, s := range v.SimilarCompounds {
		rows = append(rows, []string{
			strconv.FormatInt(s.CompoundID, 10),
			s.StandardName,
			s.MolecularFormula,
			strconv.FormatFloat(s.SimilarityScore, 'f', 4, 64),
			s.FingerprintMethod,
		})
	}
	return rows
}

func newSimilarCmd() *cobra.Command {
	opts := &similarOptions{}

	cmd := &cobra.Command{
		Use:   "similar <compound-id>",
		Short: "Find structurally similar compounds",
		Long:  "List the compounds structurally similar to the given compound,\nordered by similarity score.",
		Example: `  pharmaref similar 42
  pharmaref similar 42 --min-score 0.85 --limit 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid compound id %q", args[0])
			}
			return runSimilar(cmd, id, opts)
		},
	}

	cmd.Flags().Float64Var(&opts.minScore, "min-score", 0, "minimum similarity score (server default 0.7)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "maximum number of results (server default 10)")

	return cmd
}

func runSimilar(cmd *cobra.Command, compoundID int64, opts *similarOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(cmd, cliCtx)
	defer cancel()

	resp, err := cliCtx.Client.Compounds().SimilarTo(ctx, compoundID, opts.minScore, opts.limit)
	if err != nil {
		return fmt.Errorf("similarity lookup failed: %w", err)
	}

	if len(resp.SimilarCompounds) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No similar compounds found for %s (id %d, min score %.2f)\n",
			resp.CompoundName, resp.CompoundID, resp.MinScore)
		return nil
	}

	return PrintResult(cmd, similarView{resp})
}
