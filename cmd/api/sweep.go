package main

import (
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Re-enqueue stuck audits once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.sweeper().SweepOnce(cmd.Context())
		if err != nil {
			return err
		}
		a.log.WithField("requeued", n).Info("sweep done")
		return nil
	},
}
