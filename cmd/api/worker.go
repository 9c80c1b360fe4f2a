package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var noSweep bool

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the audit worker pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		work, err := a.workLoop()
		if err != nil {
			return err
		}

		a.log.WithField("concurrency", a.cfg.Worker.Concurrency).Info("starting workers")
		defer a.log.Info("workers stopped")

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return work(gctx) })
		if !noSweep {
			g.Go(func() error { return a.sweeper().Run(gctx) })
		}
		return g.Wait()
	},
}

func init() {
	workerCmd.Flags().BoolVar(&noSweep, "no-sweep", false, "Do not run the periodic recovery sweep")
}
