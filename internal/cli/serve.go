package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/canopyviz/canopy/internal/server"
	"github.com/canopyviz/canopy/pkg/cache"
	"github.com/canopyviz/canopy/pkg/pipeline"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr     string // listen address
	redisURL string // shared cache backend, file cache when empty
	noCache  bool   // disable caching
}

// newServeCmd creates the serve command for running the HTTP API.
func newServeCmd() *cobra.Command {
	opts := serveOpts{addr: ":8080"}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the clustering pipeline as an HTTP service",
		Long: `Run the clustering pipeline as an HTTP service.

The server exposes the pipeline over a small JSON API: upload merge streams,
cut them at any set of resolutions, and fetch assembled resolution maps as
DOT or SVG. With --redis, multiple instances share one cache; otherwise each
instance keeps a local file cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")
	cmd.Flags().StringVar(&opts.redisURL, "redis", "", "redis URL for a shared cache (redis://host:port/db)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")

	return cmd
}

// runServe starts the HTTP server and shuts it down when ctx is cancelled.
func runServe(ctx context.Context, opts serveOpts) error {
	logger := loggerFromContext(ctx)

	c, err := newServeCache(ctx, opts)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	runner := pipeline.NewRunner(c, nil, logger)
	defer runner.Close()

	srv := server.New(runner, logger)
	httpSrv := &http.Server{
		Addr:              opts.addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", opts.addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// newServeCache picks the cache backend for server use.
func newServeCache(ctx context.Context, opts serveOpts) (cache.Cache, error) {
	if opts.noCache {
		return cache.NewNullCache(), nil
	}
	if opts.redisURL != "" {
		return cache.NewRedisCache(ctx, opts.redisURL)
	}
	return newCache(false)
}
