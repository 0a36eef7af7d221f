package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/universe-mcp/harvester/internal/checkpoint"
	"github.com/universe-mcp/harvester/pkg/model"
)

func newCheckpointCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or reset harvest checkpoints",
	}
	cmd.AddCommand(newCheckpointShowCommand(), newCheckpointResetCommand())
	return cmd
}

func newCheckpointShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [category]",
		Short: "Print the stored checkpoints",
		Args:  cobra.MaximumNArgs(1),
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

			checkpoints, err := a.checkpointStore()
			if err != nil {
				return err
			}

			out := make(map[model.Category]*checkpoint.Checkpoint, len(categories))
			for _, category := range categories {
				cp, err := checkpoints.Load(category)
				if errors.Is(err, checkpoint.ErrNotFound) {
					out[category] = nil
					continue
				}
				if err != nil {
					return err
				}
				out[category] = cp
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newCheckpointResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <category|all>",
		Short: "Remove checkpoints so the next run starts from page 1",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			categories, err := resolveCategories(args[0])
			if err != nil {
				return err
			}

			checkpoints, err := a.checkpointStore()
			if err != nil {
				return err
			}

			for _, category := range categories {
				if err := checkpoints.Reset(category); err != nil {
					return err
				}
				a.logger.Info("checkpoint reset", "category", category)
			}
			return nil
		},
	}
}
