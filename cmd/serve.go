package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/jukebox/internal/server"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 15 * time.Second

// Serve runs the HTTP server until SIGINT or SIGTERM, then drains in-flight requests and detached healing work.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.wire(); err != nil {
		return err
	}
	if r.tokens == nil {
		r.logger.Warn("spotify client credentials not configured; ticks need a token in the request")
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	handler := server.New(server.Deps{
		Stage1:       r.resolver,
		Stage2:       r.assembler,
		Ticker:       r.scheduler,
		Metrics:      r.metrics.Handler(),
		AwaitHealing: r.config.Maintenance.AwaitHealing || cmd.Bool("await-healing"),
		Logger:       r.logger,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(r.config.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout: time.Duration(r.config.Server.WriteTimeoutMS) * time.Millisecond,
	}

	errc := make(chan error, 1)
	go func() {
		r.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("graceful shutdown failed", "error", err)
	}
	if err := r.scheduler.Healing().Drain(shutdownCtx); err != nil {
		r.logger.Warn("healing work still running at exit", "error", err)
	}
	return nil
}
