package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fxengine/config"
	"fxengine/internal/logger"
	sqlitestore "fxengine/internal/store/sqlite"
)

func newJournalCmd() *cobra.Command {
	var (
		limit int
		since time.Duration
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print journaled signals and closed orders as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cfg.SQLite.Path == "" {
				return errors.New("journal: sqlite.path is not set")
			}
			j, err := sqlitestore.Open(cfg.SQLite.Path, logger.Discard())
			if err != nil {
				return err
			}
			defer j.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			var after time.Time
			if since > 0 {
				after = time.Now().Add(-since)
			}
			signals, err := j.Signals(ctx, cfg.Symbol, after)
			if err != nil {
				return err
			}
			orders, err := j.ClosedOrders(ctx, cfg.Symbol, limit)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			for _, s := range signals {
				if err := enc.Encode(map[string]any{"signal": s}); err != nil {
					return fmt.Errorf("journal: %w", err)
				}
			}
			for _, o := range orders {
				if err := enc.Encode(map[string]any{"order": o}); err != nil {
					return fmt.Errorf("journal: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "closed orders to print, newest first (0 for all)")
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "signals newer than this (0 for all)")
	return cmd
}
