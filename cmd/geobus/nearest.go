package main

import (
	"net/url"
	"os"
	"strconv"

	"github.com/geobus/backend-go/internal/app"
	"github.com/geobus/backend-go/internal/config"
	"github.com/geobus/backend-go/internal/handler"
	"github.com/geobus/backend-go/internal/models"
	"github.com/geobus/backend-go/pkg/http/client"
	"github.com/spf13/cobra"
)

func newNearestCmd() *cobra.Command {
	var (
		lat, lon float64
		remote   string
		token    string
	)

	cmd := &cobra.Command{
		Use:   "nearest",
		Short: "Find the bus stop nearest to a coordinate",
		Long:  `Finds the nearest stop using the configured store, or asks a running API when --remote is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()

			var (
				stop *models.Stop
				err  error
			)
			if remote != "" {
				stop, err = nearestRemote(cmd, cfg, remote, token, lat, lon)
			} else {
				stop, err = nearestLocal(cmd, cfg, lat, lon)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stop)
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude in degrees")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude in degrees")
	cmd.Flags().StringVar(&remote, "remote", "", "Base URL of a running geobus API")
	cmd.Flags().StringVar(&token, "token", os.Getenv("API_TOKEN"), "Bearer token for --remote")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}

func nearestLocal(cmd *cobra.Command, cfg *config.Config, lat, lon float64) (*models.Stop, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, models.NewInvalidInputError("coordinates", "out of range")
	}

	a, err := app.New(cmd.Context(), cfg, config.GetCacheConfig())
	if err != nil {
		return nil, err
	}
	defer a.Close()

	return a.Locator.NearestStop(cmd.Context(), lat, lon)
}

func nearestRemote(cmd *cobra.Command, cfg *config.Config, baseURL, token string, lat, lon float64) (*models.Stop, error) {
	c := client.New(client.Options{
		BaseURL: baseURL,
		Timeout: cfg.HTTPTimeout,
		Token:   token,
	})

	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	var stop models.Stop
	if err := c.GetJSON(cmd.Context(), handler.RouteNearestStop+"?"+query.Encode(), &stop); err != nil {
		return nil, err
	}
	return &stop, nil
}
