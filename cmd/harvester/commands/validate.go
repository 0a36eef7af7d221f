package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/universe-mcp/harvester/internal/validate"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [category]",
		Short: "Validate stored records against their schemas",
		Long: `Validate every stored record of a category (or all of them) against its
JSON schema. The command exits non-zero when any record fails, printing a
report of the violations.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			target := ""
			if len(args) > 0 {
				target = args[0]
			}
			categories, err := resolveCategories(target)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			records, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer records.Close()

			validator, err := validate.NewValidator()
			if err != nil {
				return err
			}
			report, err := validator.ValidateAll(ctx, records, categories)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Valid() {
				return fmt.Errorf("%d of %d records failed schema validation",
					len(report.Violations), report.Checked)
			}
			return nil
		},
	}
}
