package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fxengine/internal/marketdata/ws"
	"fxengine/internal/model"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Trade live quotes from the websocket feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runLive(ctx)
		},
	}
}

func runLive(ctx context.Context) error {
	a, err := newApp("fxengine")
	if err != nil {
		return err
	}
	if a.cfg.Feed.URL == "" {
		a.close()
		return errors.New("feed.url is required for run")
	}

	feed, err := ws.New(ws.Config{
		URL:            a.cfg.Feed.URL,
		APIKey:         a.cfg.Feed.APIKey,
		TOTPSecret:     a.cfg.Feed.TOTPSecret,
		ReconnectEvery: a.cfg.Feed.ReconnectEvery,
	}, a.log)
	if err != nil {
		a.close()
		return err
	}
	feed.OnConnect = func() { a.health.SetFeedConnected(true) }
	feed.OnReconnect = func() {
		a.health.SetFeedConnected(false)
		a.metrics.FeedReconnect.Inc()
	}

	a.start(ctx)
	defer a.shutdown()

	quotes := make(chan model.Quote, 1024)
	feedDone := make(chan error, 1)
	go func() { feedDone <- feed.Run(ctx, quotes) }()

	a.log.Info("running, press Ctrl+C to stop")
	for {
		select {
		case <-ctx.Done():
			a.log.Info("received shutdown signal")
			return <-feedDone
		case q := <-quotes:
			// Indicator failures are logged and counted by the pipeline.
			a.submit(ctx, q)
		}
	}
}
