package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/universe-mcp/harvester/internal/checkpoint"
	"github.com/universe-mcp/harvester/internal/fetch"
	"github.com/universe-mcp/harvester/internal/harvest"
	"github.com/universe-mcp/harvester/internal/index"
	"github.com/universe-mcp/harvester/internal/source/pulse"
	"github.com/universe-mcp/harvester/internal/store"
	"github.com/universe-mcp/harvester/internal/telemetry"
	"github.com/universe-mcp/harvester/internal/validate"
	"github.com/universe-mcp/harvester/pkg/model"
)

func newHarvestCommand() *cobra.Command {
	var (
		startPage int
		endPage   int
		resume    bool
		testMode  bool
	)

	cmd := &cobra.Command{
		Use:   "harvest [category]",
		Short: "Harvest records from the source site",
		Long: `Harvest one category (servers, clients, use-cases) or all of them.

Harvesting all categories also re-validates the corpus and republishes the
index documents afterwards. The command exits non-zero if any page or record
failed, so schedulers notice partial runs.`,
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

			opts := harvest.Options{Mode: harvest.ModeFull}
			switch {
			case testMode:
				opts.Mode = harvest.ModeTest
			case resume:
				opts.Mode = harvest.ModeResume
			case startPage > 0 || endPage > 0:
				opts.Mode = harvest.ModeRange
				opts.StartPage = startPage
				opts.EndPage = endPage
			}

			// An operator interrupt must cancel the run cleanly so the
			// checkpoint and run lock are released, not strand them.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			records, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer records.Close()

			checkpoints, err := a.checkpointStore()
			if err != nil {
				return err
			}

			srcCfg, err := a.sourceConfig()
			if err != nil {
				return err
			}

			metrics, err := telemetry.New()
			if err != nil {
				return err
			}
			defer metrics.Shutdown(context.Background())

			clean := true
			for _, category := range categories {
				summary, err := a.harvestCategory(ctx, category, srcCfg, records, checkpoints, metrics, opts)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
					return err
				}
				if !summary.Success() {
					clean = false
				}
			}

			// A full "all" run refreshes the published artifacts as well.
			if len(categories) == len(model.Categories()) && !testMode {
				if err := revalidateAndIndex(ctx, cmd, a, records); err != nil {
					return err
				}
			}

			if !clean {
				return errors.New("harvest completed with failures")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&startPage, "start", 0, "First page to harvest (1-based)")
	cmd.Flags().IntVar(&endPage, "end", 0, "Last page to harvest (0 = discover from the site)")
	cmd.Flags().BoolVar(&resume, "resume", false, "Continue after the last checkpointed page")
	cmd.Flags().BoolVar(&testMode, "test", false, "Harvest only the first pages and leave checkpoints untouched")
	cmd.MarkFlagsMutuallyExclusive("test", "resume")
	cmd.MarkFlagsMutuallyExclusive("resume", "start")
	cmd.MarkFlagsMutuallyExclusive("test", "start")

	return cmd
}

func (a *app) harvestCategory(ctx context.Context, category model.Category, srcCfg pulse.Config,
	records store.Store, checkpoints checkpoint.Store, metrics *telemetry.Metrics,
	opts harvest.Options) (*harvest.Summary, error) {
	adapter, err := pulse.NewAdapter(category, srcCfg)
	if err != nil {
		return nil, err
	}

	fetcher := fetch.NewFetcher(a.cfg.FetchTimeout, a.backoff(), a.cfg.UserAgent, a.logger)
	orch := harvest.New(adapter, fetcher, records, checkpoints, a.logger, metrics, a.cfg.TestPages)
	return orch.Run(ctx, opts)
}

func revalidateAndIndex(ctx context.Context, cmd *cobra.Command, a *app, records store.Store) error {
	validator, err := validate.NewValidator()
	if err != nil {
		return err
	}
	report, err := validator.ValidateAll(ctx, records, model.Categories())
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if !report.Valid() {
		return fmt.Errorf("%d records failed schema validation", len(report.Violations))
	}

	return index.NewBuilder(records, a.cfg.IndexDir, a.logger).Build(ctx)
}
