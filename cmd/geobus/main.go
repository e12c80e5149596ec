// Command geobus runs the stop and bus position API over HTTP and provides
// maintenance commands.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/geobus/backend-go/internal/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "geobus",
		Short:         "Bus stop and bus position service",
		Long:          `Finds the nearest bus stop, estimates walking times and reports recent bus positions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newPruneCmd(),
		newNearestCmd(),
		newRecordCmd(),
		newMigrateCmd(),
	)
	return rootCmd
}

func loadConfig() *config.Config {
	cfg := config.LoadFromEnv()
	cfg.InitializeLogging()
	return cfg
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
