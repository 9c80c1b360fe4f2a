package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/auditor/internal/infra/httpserver"
	"github.com/bryanwahyu/auditor/internal/metrics"
	"github.com/bryanwahyu/auditor/internal/middleware"
)

var withWorker bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		log := a.log

		httpMetrics := middleware.NewMetrics("auditor")
		httpMetrics.MustRegister(prometheus.DefaultRegisterer)
		prometheus.MustRegister(metrics.NewAuditStatusCollector(a.audits, log))

		limiter := a.limiter()
		handler := httpserver.NewRouter(httpserver.Options{
			Audits:      a.intake(),
			Checkers:    a.checkers(),
			APIKeys:     a.cfg.Auth.APIKeys,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			Limiter:     limiter,
			RateWindow:  a.cfg.RateLimit.Window,
			Metrics:     httpMetrics,
			Log:         log,
		})
		if len(a.cfg.Auth.APIKeys) == 0 {
			log.Warn("no api keys configured, tenant routes are unauthenticated")
		}

		addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
		srv := &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.WithField("addr", addr).Info("server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			log.Info("shutting down server...")
			sctx, scancel := shutdownCtx(a.cfg.Server.ShutdownTimeout)
			defer scancel()
			return srv.Shutdown(sctx)
		})
		if rl, ok := limiter.(*middleware.RateLimiter); ok {
			g.Go(func() error {
				idle := 10 * a.cfg.RateLimit.Window
				t := time.NewTicker(idle)
				defer t.Stop()
				for {
					select {
					case <-gctx.Done():
						return nil
					case <-t.C:
						rl.Cleanup(idle)
					}
				}
			})
		}
		if withWorker {
			work, err := a.workLoop()
			if err != nil {
				cancel()
				_ = g.Wait()
				return err
			}
			g.Go(func() error { return work(gctx) })
			g.Go(func() error { return a.sweeper().Run(gctx) })
		}
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&withWorker, "with-worker", false, "Also run the worker pool and recovery sweep in this process")
}
