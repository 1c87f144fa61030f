package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"dividend/internal/platform/config"
	"dividend/internal/platform/httpserver"
	"dividend/internal/platform/logger"
	"dividend/internal/platform/ratelimit"
)

const retentionInterval = time.Hour

// main wires the dependencies, serves HTTP and runs the settlement worker
// until a signal arrives. Business logic lives in internal service packages.
func main() {
	if err := run(); err != nil {
		slog.Error("dividend stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	srv := httpserver.New(cfg.Server.Addr, a.router, httpserver.WithWriteTimeout(cfg.Server.WriteTimeout))
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting dividend", "addr", cfg.Server.Addr, "storage", a.storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if a.worker != nil {
		g.Go(func() error {
			if err := a.worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		runRetention(gctx, a.aggregator, cfg.Integrity.Retention, log)
		return nil
	})
	if a.ingestion != nil {
		g.Go(func() error {
			runSweep(gctx, a.ingestion, cfg.RateLimit.Window)
			return nil
		})
	}

	return g.Wait()
}

// runRetention prunes GI samples older than the retention window.
func runRetention(ctx context.Context, p pruner, retention time.Duration, log *slog.Logger) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PruneBefore(ctx, time.Now().Add(-retention))
			if err != nil {
				log.ErrorContext(ctx, "gi sample pruning failed", "error", err)
				continue
			}
			if n > 0 {
				log.InfoContext(ctx, "pruned gi samples", "deleted", n)
			}
		}
	}
}

// runSweep drops idle rate limit buckets once per window.
func runSweep(ctx context.Context, w *ratelimit.Window, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}
