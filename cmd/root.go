package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangasrc/internal/config"
)

var (
	flagIgnoreConfig bool
	flagDebug        bool
	flagHeadful      bool
	flagChromePath   string
	flagJSON         bool
)

var rootCmd = &cobra.Command{
	Use:           "mangasrc",
	Short:         "Comic catalog extraction across protected sources",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagIgnoreConfig, "ignore-config", false, "ignore config and use only CLI flags")
	rootCmd.PersistentFlags().BoolVar(&flagHeadful, "headful", false, "show the browser window")
	rootCmd.PersistentFlags().StringVar(&flagChromePath, "chrome", "", "path to the Chrome/Chromium executable")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "print results as JSON")
}

// baseOptions carries the persistent flags into a config merge.
func baseOptions() config.Options {
	return config.Options{
		IgnoreConfig: flagIgnoreConfig,
		Debug:        flagDebug,
		Headful:      flagHeadful,
		ExecPath:     flagChromePath,
	}
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
