package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/api"
)

const shutdownTimeout = 15 * time.Second

func runServer(args []string, _, stderr io.Writer) int {
	cmd := flag.NewFlagSet("serve", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var port string
	cmd.StringVar(&port, "port", "", "Listen port (overrides PORT)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	return withApp(stderr, func(ctx context.Context, a *app) int {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		if _, err := a.chain.EnsureGenesis(ctx); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}

		opts := []api.Option{api.WithLogger(a.logger.With("component", "api")), api.WithObservability(a.obs)}
		limiter, closeLimiter, err := newLimiter(ctx, a)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		defer closeLimiter()
		opts = append(opts, api.WithLimiter(limiter))

		if port == "" {
			port = a.cfg.Port
		}
		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           api.NewServer(a.audit, a.store, opts...).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.logger.Info("listening", "addr", srv.Addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
				return 2
			}
		case <-ctx.Done():
			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("graceful shutdown failed", "error", err)
				return 2
			}
		}
		return 0
	})
}

// newLimiter prefers the shared Redis bucket and falls back to per-process limiting.
func newLimiter(ctx context.Context, a *app) (api.Limiter, func(), error) {
	if a.cfg.RedisURL != "" {
		l, err := api.NewRedisLimiter(a.cfg.RedisURL, a.cfg.RateLimitRPS, a.cfg.RateLimitBurst)
		if err != nil {
			return nil, nil, err
		}
		a.logger.Info("rate limiting via redis")
		return l, func() { _ = l.Close() }, nil
	}
	l := api.NewMemoryLimiter(a.cfg.RateLimitRPS, a.cfg.RateLimitBurst)
	go l.Run(ctx)
	return l, func() {}, nil
}
