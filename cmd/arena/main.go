package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	config string
	db     string
}

var rootCmd = &cobra.Command{
	Use:   "arena",
	Short: "Train and serve tabular arena bots",
	Long:  "arena trains a Q-learning bot policy from prioritized replay,\ncheckpoints it to SQLite, and serves it over gRPC.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.config, "config", "", "YAML config file (default $ARENA_CONFIG)")
	pf.StringVar(&rootFlags.db, "db", "", "checkpoint database (overrides config and $ARENA_DB)")

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
