package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/geobus/backend-go/internal/api"
	"github.com/rs/zerolog/log"
)

// RouteHealth reports whether the store is reachable.
const RouteHealth = "/health"

// LambdaHandler is the signature shared by every API Gateway handler.
type LambdaHandler func(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// Pinger is satisfied by the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router dispatches on the API Gateway resource template.
type Router struct {
	stops     *StopsHandler
	positions *PositionsHandler
	health    Pinger
}

func NewRouter(stops *StopsHandler, positions *PositionsHandler, health Pinger) *Router {
	return &Router{stops: stops, positions: positions, health: health}
}

func (r *Router) HandleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch {
	case request.Resource == RouteHealth:
		return r.handleHealth(ctx)
	case request.Resource == RoutePositionStop, strings.HasPrefix(request.Resource, "/stops"):
		return r.stops.HandleRequest(ctx, request)
	case strings.HasPrefix(request.Resource, "/buses"), strings.HasPrefix(request.Resource, "/positions"):
		return r.positions.HandleRequest(ctx, request)
	}
	return api.Error("Route not found", http.StatusNotFound)
}

func (r *Router) handleHealth(ctx context.Context) (events.APIGatewayProxyResponse, error) {
	if r.health != nil {
		if err := r.health.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("Health check failed")
			return api.JSON(http.StatusServiceUnavailable, api.HealthResponse{Status: "unavailable"})
		}
	}
	return api.Success(api.HealthResponse{Status: "ok"})
}

// RequireAuth refuses requests that carry no authorizer principal. Issuing
// and checking credentials is left to the authorizer in front of the API.
func RequireAuth(next LambdaHandler) LambdaHandler {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		if request.Resource != RouteHealth && principal(request) == "" {
			return api.Error("Unauthorized", http.StatusUnauthorized)
		}
		return next(ctx, request)
	}
}

func principal(request events.APIGatewayProxyRequest) string {
	if request.RequestContext.Authorizer == nil {
		return ""
	}
	if id, ok := request.RequestContext.Authorizer["principalId"].(string); ok {
		return strings.TrimSpace(id)
	}
	return ""
}
