package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fxengine/internal/marketdata/replay"
)

func newReplayCmd() *cobra.Command {
	var speed float64
	cmd := &cobra.Command{
		Use:   "replay <ticks.tsv>",
		Short: "Run the engine over an MT5 tick export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("replay: %w", err)
			}
			defer f.Close()

			a, err := newApp("fxengine-replay")
			if err != nil {
				return err
			}
			r, err := replay.NewReader(f, a.cfg.Location)
			if err != nil {
				a.close()
				return err
			}
			a.start(ctx)
			defer a.shutdown()

			st, err := replay.New(speed, a.log).Run(ctx, r, a.submit)
			a.log.Info("replay finished", "read", st.Read, "rejected", st.Rejected, "errors", st.Errors)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().Float64Var(&speed, "speed", 0, "playback rate: 1 = recorded pace, 0 = as fast as possible")
	return cmd
}
