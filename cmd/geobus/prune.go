package main

import (
	"fmt"

	"github.com/geobus/backend-go/internal/app"
	"github.com/geobus/backend-go/internal/config"
	"github.com/spf13/cobra"
)

func newPruneCmd() *cobra.Command {
	var hours int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete bus positions older than the retention",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			if !cmd.Flags().Changed("hours") {
				hours = cfg.RetentionHours
			}

			a, err := app.New(cmd.Context(), cfg, config.GetCacheConfig())
			if err != nil {
				return err
			}
			defer a.Close()

			deleted, err := a.Pruner(hours).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d positions older than %d hours\n", deleted, hours)
			return nil
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 0, "Maximum age in hours (default RETENTION_HOURS)")
	return cmd
}
