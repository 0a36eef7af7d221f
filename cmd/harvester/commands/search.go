package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/universe-mcp/harvester/internal/search"
)

func newSearchCommand() *cobra.Command {
	var (
		classification string
		provider       string
		category       string
		limit          int
		asJSON         bool
	)

	cmd := &cobra.Command{
		Use:   "search [keyword...]",
		Short: "Search the published server index",
		Long: `Search the published server index by keyword and filters. Keywords match
name, provider, description and tags case-insensitively; every keyword must
match. Results are printed one per line, or as JSON with --json, in index
order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			results, err := search.NewSearcher(a.cfg.IndexDir).Search(search.Query{
				Keywords:       args,
				Classification: classification,
				Provider:       provider,
				Category:       category,
				Limit:          limit,
			})
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), results)
			}
			out := cmd.OutOrStdout()
			for _, rec := range results {
				provider := "-"
				if rec.Provider != nil {
					provider = *rec.Provider
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n",
					rec.ID, rec.Name, rec.StorageClassification(), provider)
			}
			fmt.Fprintf(out, "%d result(s)\n", len(results))
			return nil
		},
	}

	cmd.Flags().StringVar(&classification, "classification", "", "Filter by classification (official, reference, community)")
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider name")
	cmd.Flags().StringVar(&category, "category", "", "Filter by server category tag")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results (0 = unlimited)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}
