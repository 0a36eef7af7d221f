package commands

import (
	"github.com/spf13/cobra"

	"github.com/universe-mcp/harvester/internal/index"
)

func newIndexCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild and publish the index documents",
		Long: `Derive the published index documents (listings, groupings and statistics)
from the record store. The document set is staged and then published
atomically, so readers never see a partial update.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			records, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer records.Close()

			return index.NewBuilder(records, a.cfg.IndexDir, a.logger).Build(ctx)
		},
	}
}
