package main

import (
	"time"

	"github.com/geobus/backend-go/internal/app"
	"github.com/geobus/backend-go/internal/config"
	"github.com/geobus/backend-go/internal/models"
	"github.com/spf13/cobra"
)

func newRecordCmd() *cobra.Command {
	var (
		p  models.BusPosition
		at string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Store a single bus position observation",
		Long:  `Stores one observation, stamped with the current time unless --at is given. Meant for seeding and manual checks.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if at != "" {
				ts, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return models.NewInvalidInputError("at", "must be an RFC3339 timestamp")
				}
				p.Timestamp = ts.UTC()
			}

			a, err := app.New(cmd.Context(), loadConfig(), config.GetCacheConfig())
			if err != nil {
				return err
			}
			defer a.Close()

			saved, err := a.Tracker.Record(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), saved)
		},
	}

	cmd.Flags().StringVar(&p.BusID, "bus", "", "Bus identifier")
	cmd.Flags().StringVar(&p.Line, "line", "", "Line the bus serves")
	cmd.Flags().Float64Var(&p.Latitude, "lat", 0, "Latitude in degrees")
	cmd.Flags().Float64Var(&p.Longitude, "lon", 0, "Longitude in degrees")
	cmd.Flags().StringVar(&at, "at", "", "Observation time (RFC3339)")
	_ = cmd.MarkFlagRequired("bus")
	_ = cmd.MarkFlagRequired("line")
	return cmd
}
