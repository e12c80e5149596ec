package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/geobus/backend-go/internal/api"
	"github.com/geobus/backend-go/internal/models"
)

// Position routes.
const (
	RouteLinePositions   = "/buses/line/{line}/positions"
	RouteBusPosition     = "/buses/{busId}/position"
	RouteRecentPositions = "/positions"
	RouteNearStop        = "/positions/stop/{stopId}"
	RoutePositionCount   = "/positions/count"
)

// PositionDefaults are applied when a request omits the parameter.
type PositionDefaults struct {
	WindowMinutes  int
	RadiusMeters   float64
	FallbackWindow time.Duration
}

type PositionsHandler struct {
	tracker  models.PositionTracker
	defaults PositionDefaults
}

func NewPositionsHandler(tracker models.PositionTracker, defaults PositionDefaults) *PositionsHandler {
	if defaults.WindowMinutes <= 0 {
		defaults.WindowMinutes = 30
	}
	if defaults.RadiusMeters <= 0 {
		defaults.RadiusMeters = 5000
	}
	return &PositionsHandler{
		tracker:  tracker,
		defaults: defaults,
	}
}

func (h *PositionsHandler) HandleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	params := request.QueryStringParameters

	switch request.Resource {
	case RouteLinePositions:
		line := strings.TrimSpace(request.PathParameters["line"])
		if line == "" {
			return api.FromError(models.NewInvalidInputError("line", "parameter is required"))
		}
		minutes, err := api.ParsePositiveInt(params, "minutes", h.defaults.WindowMinutes)
		if err != nil {
			return api.FromError(err)
		}
		positions, err := h.tracker.RecentPositions(ctx, line, minutes)
		if err != nil {
			return api.FromError(err)
		}
		return api.Success(positions)

	case RouteBusPosition:
		busID := strings.TrimSpace(request.PathParameters["busId"])
		if busID == "" {
			return api.FromError(models.NewInvalidInputError("busId", "parameter is required"))
		}
		position, err := h.tracker.LastKnownPosition(ctx, busID)
		if err != nil {
			return api.FromError(err)
		}
		return api.Success(position)

	case RouteRecentPositions:
		minutes, err := api.ParsePositiveInt(params, "minutes", h.defaults.WindowMinutes)
		if err != nil {
			return api.FromError(err)
		}
		positions, err := h.tracker.AllRecentPositions(ctx, minutes)
		if err != nil {
			return api.FromError(err)
		}
		return api.Success(positions)

	case RouteNearStop:
		stopID, err := api.ParseID(request.PathParameters["stopId"], "stopId")
		if err != nil {
			return api.FromError(err)
		}
		radius, err := api.ParsePositiveFloat(params, "radius", h.defaults.RadiusMeters)
		if err != nil {
			return api.FromError(err)
		}
		positions, err := h.tracker.PositionsNearStop(ctx, stopID, radius, h.defaults.FallbackWindow)
		if err != nil {
			return api.FromError(err)
		}
		return api.Success(positions)

	case RoutePositionCount:
		count, err := h.tracker.Count(ctx)
		if err != nil {
			return api.FromError(err)
		}
		return api.Success(api.CountResponse{Count: count})
	}

	return api.Error("Route not found", http.StatusNotFound)
}
