package api

import (
	"math"
	"strconv"
	"strings"

	"github.com/geobus/backend-go/internal/models"
)

type InvalidCoordinatesError struct{}

func (e InvalidCoordinatesError) Error() string {
	return "Invalid coordinates"
}

// ParseCoordinates reads the lat and lon query parameters.
func ParseCoordinates(params map[string]string) (float64, float64, error) {
	return ParseCoordinatesFrom(params, "lat", "lon")
}

// ParseCoordinatesFrom reads a required latitude and longitude pair and
// rejects values outside [-90, 90] and [-180, 180].
func ParseCoordinatesFrom(params map[string]string, latKey, lonKey string) (float64, float64, error) {
	latStr, hasLat := params[latKey]
	lonStr, hasLon := params[lonKey]

	if !hasLat || strings.TrimSpace(latStr) == "" {
		return 0, 0, models.NewInvalidInputError(latKey, "parameter is required")
	}
	if !hasLon || strings.TrimSpace(lonStr) == "" {
		return 0, 0, models.NewInvalidInputError(lonKey, "parameter is required")
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, models.NewInvalidInputError(latKey, "must be a number")
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return 0, 0, models.NewInvalidInputError(lonKey, "must be a number")
	}

	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, InvalidCoordinatesError{}
	}

	return lat, lon, nil
}

// ParseID reads a required integer identifier.
func ParseID(value, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, models.NewInvalidInputError(name, "must be an integer")
	}
	return id, nil
}

// ParsePositiveInt reads an optional positive integer parameter.
func ParsePositiveInt(params map[string]string, key string, defaultValue int) (int, error) {
	raw, ok := params[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, models.NewInvalidInputError(key, "must be a positive integer")
	}
	return n, nil
}

// ParsePositiveFloat reads an optional positive number parameter.
func ParsePositiveFloat(params map[string]string, key string, defaultValue float64) (float64, error) {
	raw, ok := params[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, models.NewInvalidInputError(key, "must be a positive number")
	}
	return f, nil
}
