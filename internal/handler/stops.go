package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/geobus/backend-go/internal/api"
	"github.com/geobus/backend-go/internal/models"
)

// Stop routes.
const (
	RouteNearestStop  = "/stops/nearest"
	RouteTimeToStop   = "/stops/time"
	RouteStopsInCity  = "/stops/city/{city}"
	RouteDefaultCity  = "/stops/marrakech"
	RouteAllStops     = "/stops"
	RoutePositionStop = "/positions/stops"
)

type StopsHandler struct {
	locator     models.StopLocator
	defaultCity string
}

func NewStopsHandler(locator models.StopLocator, defaultCity string) *StopsHandler {
	return &StopsHandler{
		locator:     locator,
		defaultCity: defaultCity,
	}
}

func (h *StopsHandler) HandleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	params := request.QueryStringParameters

	switch request.Resource {
	case RouteNearestStop:
		lat, lon, err := api.ParseCoordinates(params)
		if err != nil {
			return api.FromError(err)
		}
		stop, err := h.locator.NearestStop(ctx, lat, lon)
		if err != nil {
			return api.FromError(err)
		}
		return api.Success(stop)

	case RouteTimeToStop:
		lat, lon, err := api.ParseCoordinatesFrom(params, "userLat", "userLon")
		if err != nil {
			return api.FromError(err)
		}
		stopID, err := api.ParseID(params["stopId"], "stopId")
		if err != nil {
			return api.FromError(err)
		}
		estimate, err := h.locator.TimeToStop(ctx, lat, lon, stopID)
		if err != nil {
			return api.FromError(err)
		}
		return api.Success(estimate)

	case RouteStopsInCity, RouteDefaultCity:
		city := h.defaultCity
		if request.Resource == RouteStopsInCity {
			city = strings.TrimSpace(request.PathParameters["city"])
		}
		if city == "" {
			return api.FromError(models.NewInvalidInputError("city", "parameter is required"))
		}
		stops, err := h.locator.StopsInCity(ctx, city)
		if err != nil {
			return api.FromError(err)
		}
		return api.Success(stops)

	case RouteAllStops, RoutePositionStop:
		stops, err := h.locator.AllStops(ctx)
		if err != nil {
			return api.FromError(err)
		}
		return api.Success(stops)
	}

	return api.Error("Route not found", http.StatusNotFound)
}
