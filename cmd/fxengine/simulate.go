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

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fxengine/internal/logger"
	"fxengine/internal/marketdata/wssim"
)

func newSimulateCmd() *cobra.Command {
	var (
		addr     string
		start    string
		spread   int
		step     int
		interval time.Duration
		apiKey   string
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Serve random-walk quotes on a websocket for local runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			first, err := decimal.NewFromString(start)
			if err != nil {
				return err
			}
			log := logger.Init("fxengine-simulate", slog.LevelInfo)
			sim := wssim.New(wssim.Config{
				Start:    first,
				Spread:   spread,
				Step:     step,
				Interval: interval,
				APIKey:   apiKey,
			}, log)
			go sim.Run(ctx)

			mux := http.NewServeMux()
			mux.Handle("/ws", sim)
			srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			log.Info("quote simulator listening", "addr", addr, "path", "/ws")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9001", "listen address")
	cmd.Flags().StringVar(&start, "start", "1.10000", "first bid")
	cmd.Flags().IntVar(&spread, "spread", 10, "ask-bid spread in points")
	cmd.Flags().IntVar(&step, "step", 5, "max bid move per quote in points")
	cmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "time between quotes")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "require this X-API-Key header")
	return cmd
}
