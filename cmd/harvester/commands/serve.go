package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/universe-mcp/harvester/internal/telemetry"
	"github.com/universe-mcp/harvester/internal/web"
)

func newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the published indexes and records over HTTP",
		Long: `Serve the read-only JSON API, the published index documents and the raw
record files. Static responses carry CORS headers and disable caching so a
browser always sees the freshest published data. Prometheus metrics are
exposed on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if addr != "" {
				a.cfg.ServerAddress = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			records, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer records.Close()

			metrics, err := telemetry.New()
			if err != nil {
				return err
			}
			defer metrics.Shutdown(context.Background())

			server := web.NewServer(a.cfg, records, metrics, a.logger)

			errCh := make(chan error, 1)
			go func() {
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides HARVESTER_SERVER_ADDRESS)")

	return cmd
}
