package main

import (
	"context"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/geobus/backend-go/internal/api"
	"github.com/geobus/backend-go/internal/app"
	"github.com/geobus/backend-go/internal/config"
	"github.com/geobus/backend-go/internal/handler"
	"github.com/rs/zerolog/log"
)

var (
	lambdaStart    = lambda.Start // Allow mocking of lambda.Start in tests
	requestHandler handler.LambdaHandler
	setupOnce      sync.Once
)

func init() {
	setupOnce.Do(func() {
		cfg := config.LoadFromEnv()
		cfg.InitializeLogging()

		a, err := app.New(context.Background(), cfg, config.GetCacheConfig())
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize positions handler")
			requestHandler = unavailable
			return
		}

		requestHandler = a.Positions.HandleRequest
		if cfg.RequireAuth {
			requestHandler = handler.RequireAuth(requestHandler)
		}
	})
}

func unavailable(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return api.Error("Service temporarily unavailable", http.StatusServiceUnavailable)
}

func handleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return requestHandler(ctx, request)
}

func main() {
	lambdaStart(handleRequest)
}
