// Package commands implements the harvester CLI.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/universe-mcp/harvester/internal/checkpoint"
	"github.com/universe-mcp/harvester/internal/config"
	"github.com/universe-mcp/harvester/internal/ratelimit"
	"github.com/universe-mcp/harvester/internal/source/pulse"
	"github.com/universe-mcp/harvester/internal/store"
	"github.com/universe-mcp/harvester/pkg/model"
)

// NewRootCommand builds the harvester command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "harvester",
		Short: "Harvest, validate, index and serve MCP directory listings",
		Long: `harvester scrapes a paginated MCP directory site into per-record JSON
files, validates them against their schemas, derives published index
documents, and serves the result over HTTP.

All configuration comes from HARVESTER_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newHarvestCommand(),
		newValidateCommand(),
		newIndexCommand(),
		newCheckpointCommand(),
		newSearchCommand(),
		newServeCommand(),
	)
	return root
}

// app bundles the pieces every command needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newApp() (*app, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &app{
		cfg:    cfg,
		logger: slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	}, nil
}

// openStore picks Postgres when a database URL is configured, the filesystem
// store otherwise.
func (a *app) openStore(ctx context.Context) (store.Store, error) {
	if a.cfg.DatabaseURL != "" {
		return store.NewPostgresStore(ctx, a.cfg.DatabaseURL)
	}
	return store.NewFileStore(a.cfg.DataDir)
}

func (a *app) checkpointStore() (checkpoint.Store, error) {
	return checkpoint.NewFileStore(a.cfg.CheckpointDir)
}

func (a *app) sourceConfig() (pulse.Config, error) {
	if a.cfg.SelectorConfig != "" {
		return pulse.LoadConfig(a.cfg.SelectorConfig, a.cfg.BaseURL)
	}
	return pulse.DefaultConfig(a.cfg.BaseURL), nil
}

func (a *app) backoff() ratelimit.Config {
	return ratelimit.Config{
		Delay:             a.cfg.RequestDelay,
		MaxRetries:        a.cfg.MaxRetries,
		InitialBackoff:    a.cfg.InitialBackoff,
		MaxBackoff:        a.cfg.MaxBackoff,
		BackoffMultiplier: 2,
	}
}

// resolveCategories turns a CLI category argument into the category list to
// operate on. The empty string and "all" select every category.
func resolveCategories(arg string) ([]model.Category, error) {
	if arg == "" || arg == "all" {
		return model.Categories(), nil
	}
	category, ok := model.ParseCategory(arg)
	if !ok {
		return nil, fmt.Errorf("unknown category %q (expected servers, clients, use-cases or all)", arg)
	}
	return []model.Category{category}, nil
}

// printJSON writes v as indented JSON, the output format of every command.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
