package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pharmaref/pharmaref/pkg/client"
)

// compoundStatsView renders compound statistics as a table.
type compoundStatsView struct {
	*client.CompoundStatistics
}

func (v compoundStatsView) TableHeaders() []string {
	return []string{"METRIC", "VALUE"}
}

func (v compoundStatsView) TableRows() [][]string {
	rows := [][]string{
		{"total compounds", strconv.FormatInt(v.Total, 10)},
		{"valid", strconv.FormatInt(v.Valid, 10)},
		{"invalid", strconv.FormatInt(v.Invalid, 10)},
		{"with PubChem CID", strconv.FormatInt(v.WithPubChemCID, 10)},
		{"with structure data", strconv.FormatInt(v.WithStructureData, 10)},
	}
	for _, bucket := range sortedKeys(v.WeightDistribution) {
		rows = append(rows, []string{
			"weight " + bucket,
			strconv.FormatInt(v.WeightDistribution[bucket], 10),
		})
	}
	return rows
}

// productStatsView renders product statistics as a table.
type productStatsView struct {
	*client.ProductStatistics
}

func (v productStatsView) TableHeaders() []string {
	return []string{"METRIC", "VALUE"}
}

func (v productStatsView) TableRows() [][]string {
	rows := [][]string{
		{"total products", strconv.FormatInt(v.Total, 10)},
		{"combination", strconv.FormatInt(v.Combination, 10)},
		{"single ingredient", strconv.FormatInt(v.SingleIngredient, 10)},
	}
	for _, m := range v.TopManufacturers {
		rows = append(rows, []string{
			"manufacturer " + m.Manufacturer,
			strconv.FormatInt(m.Count, 10),
		})
	}
	return rows
}

// similarityStatsView renders similarity statistics as a table.
type similarityStatsView struct {
	*client.SimilarityStatistics
}

func (v similarityStatsView) TableHeaders() []string {
	return []string{"METRIC", "VALUE"}
}

func (v similarityStatsView) TableRows() [][]string {
	rows := [][]string{
		{"total analyses", strconv.FormatInt(v.Total, 10)},
		{"current", strconv.FormatInt(v.Current, 10)},
		{"invalidated", strconv.FormatInt(v.Invalidated, 10)},
		{"average score", strconv.FormatFloat(v.AverageScore, 'f', 4, 64)},
	}
	for _, bucket := range sortedKeys(v.ScoreDistribution) {
		rows = append(rows, []string{
			"score " + bucket,
			strconv.FormatInt(v.ScoreDistribution[bucket], 10),
		})
	}
	for _, m := range v.MethodBreakdown {
		rows = append(rows, []string{
			"method " + m.FingerprintMethod,
			strconv.FormatInt(m.Count, 10),
		})
	}
	return rows
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <domain>",
		Short: "Show aggregate statistics",
		Long:  "Show aggregate statistics for one of the data domains:\ncompounds, products or similarities.",
		Example: `  pharmaref stats compounds
  pharmaref stats products -o json
  pharmaref stats similarities`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"compounds", "products", "similarities"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, args[0])
		},
	}
	return cmd
}

func runStats(cmd *cobra.Command, domain string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(cmd, cliCtx)
	defer cancel()

	switch domain {
	case "compounds":
		stats, err := cliCtx.Client.Compounds().Statistics(ctx)
		if err != nil {
			return fmt.Errorf("compound statistics failed: %w", err)
		}
		return PrintResult(cmd, compoundStatsView{stats})
	case "products":
		stats, err := cliCtx.Client.Products().Statistics(ctx)
		if err != nil {
			return fmt.Errorf("product statistics failed: %w", err)
		}
		return PrintResult(cmd, productStatsView{stats})
	case "similarities":
		stats, err := cliCtx.Client.Similarities().Statistics(ctx)
		if err != nil {
			return fmt.Errorf("similarity statistics failed: %w", err)
		}
		return PrintResult(cmd, similarityStatsView{stats})
	default:
		return fmt.Errorf("unknown statistics domain %q (expected compounds, products or similarities)", domain)
	}
}
