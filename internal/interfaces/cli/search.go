package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pharmaref/pharmaref/pkg/client"
)

type searchOptions struct {
	searchType string
	target     string
	page       int
	pageSize   int
}

// compoundSearchView renders compound search results as a table.
type compoundSearchView struct {
	*client.CompoundSearchResponse
}

func (v compoundSearchView) TableHeaders() []string {
	return []string{"ID", "STANDARD NAME", "CID", "MATCH"}
}

func (v compoundSearchView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Results))
	for _, r := range v.Results {
		cid := "-"
		if r.CID != nil {
			cid = strconv.FormatInt(*r.CID, 10)
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.StandardName,
			cid,
			r.MatchType,
		})
	}
	return rows
}

// productSearchView renders product search results as a table.
type productSearchView struct {
	*client.ListEnvelope[client.Product]
}

func (v productSearchView) TableHeaders() []string {
	return []string{"ID", "PRODUCT NAME", "MANUFACTURER", "PERMIT", "COMBINATION"}
}

func (v productSearchView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Results))
	for _, p := range v.Results {
		rows = append(rows, []string{
			strconv.FormatInt(p.ID, 10),
			p.ProductName,
			p.Manufacturer,
			p.PermitNumber,
			strconv.FormatBool(p.IsCombination),
		})
	}
	return rows
}

func newSearchCmd() *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search compounds or products",
		Long:  "Search compounds by name, PubChem CID or SMILES, or products by name,\nmanufacturer or permit number.",
		Example: `  pharmaref search aspirin
  pharmaref search 2244 --type cid
  pharmaref search "CC(=O)OC1=CC=CC=C1C(=O)O" --type smiles
  pharmaref search tylenol --target products`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.searchType, "type", "t", "name", "compound search type (name, cid, smiles)")
	cmd.Flags().StringVar(&opts.target, "target", "compounds", "search target (compounds, products)")
	cmd.Flags().IntVar(&opts.page, "page", 1, "result page for product searches")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 20, "page size for product searches")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts *searchOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(cmd, cliCtx)
	defer cancel()

	switch opts.target {
	case "compounds":
		resp, err := cliCtx.Client.Compounds().Search(ctx, query, opts.searchType)
		if err != nil {
			return fmt.Errorf("compound search failed: %w", err)
		}
		return PrintResult(cmd, compoundSearchView{resp})
	case "products":
		resp, err := cliCtx.Client.Products().Search(ctx, query, opts.page, opts.pageSize)
		if err != nil {
			return fmt.Errorf("product search failed: %w", err)
		}
		return PrintResult(cmd, productSearchView{resp})
	default:
		return fmt.Errorf("unknown search target %q (expected compounds or products)", opts.target)
	}
}
