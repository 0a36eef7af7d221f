// Package web serves the published indexes and harvested records over HTTP.
// The JSON API is a read-only view; all writes happen through the harvest
// pipeline.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/universe-mcp/harvester/internal/config"
	"github.com/universe-mcp/harvester/internal/store"
	"github.com/universe-mcp/harvester/internal/telemetry"
)

// trailingSlashMiddleware redirects requests with trailing slashes to their
// canonical form.
func trailingSlashMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && strings.HasSuffix(r.URL.Path, "/") {
			newURL := *r.URL
			newURL.Path = strings.TrimSuffix(r.URL.Path, "/")
			http.Redirect(w, r, newURL.String(), http.StatusPermanentRedirect)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Server is the HTTP server for the read API and static files.
type Server struct {
	config  *config.Config
	humaAPI huma.API
	server  *http.Server
	logger  *slog.Logger
}

// NewServer wires the API, static file handlers and metrics endpoint.
// metrics may be nil, in which case /metrics is not registered.
func NewServer(cfg *config.Config, records store.Store, metrics *telemetry.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("Universe MCP Harvester API", "1.0.0"))
	RegisterEndpoints(api, records, cfg.IndexDir)

	mux.Handle("/indexes/", newStaticHandler("/indexes/", cfg.IndexDir, indexAllowlist))
	mux.Handle("/data/", newStaticHandler("/data/", cfg.DataDir, anyJSON))
	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}

	return &Server{
		config:  cfg,
		humaAPI: api,
		logger:  logger,
		server: &http.Server{
			Addr:              cfg.ServerAddress,
			Handler:           trailingSlashMiddleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start begins listening for incoming HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "address", s.config.ServerAddress)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
