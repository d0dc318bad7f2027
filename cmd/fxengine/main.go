package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:          "fxengine",
		Short:        "Candle-driven forex decision engine",
		Long:         `Aggregates bid/ask ticks into candles, polls technical indicators for a consensus signal and simulates the resulting orders.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.AddCommand(newRunCmd(), newReplayCmd(), newSimulateCmd(), newJournalCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
