// Package server exposes the API Gateway handlers over plain HTTP so the
// service can run outside Lambda.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/geobus/backend-go/internal/api"
	"github.com/geobus/backend-go/internal/handler"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// Routes served over HTTP, all GET.
var Routes = []string{
	handler.RouteNearestStop,
	handler.RouteTimeToStop,
	handler.RouteDefaultCity,
	handler.RouteStopsInCity,
	handler.RouteAllStops,
	handler.RouteLinePositions,
	handler.RouteBusPosition,
	handler.RouteRecentPositions,
	handler.RouteNearStop,
	handler.RoutePositionCount,
	handler.RoutePositionStop,
	handler.RouteHealth,
}

// RequestObserver records per-route request outcomes.
type RequestObserver interface {
	ObserveRequest(route string, status int, d time.Duration)
}

type Options struct {
	// RequireAuth rejects requests without an authorizer principal.
	RequireAuth bool
	// APIToken, when set, authorizes requests carrying it as a bearer token.
	APIToken string
	Observer RequestObserver
	// MetricsHandler is mounted on /metrics when set.
	MetricsHandler http.Handler
	Timeout        time.Duration
}

// New builds the HTTP handler: routing, CORS, request ids, logging and panic
// recovery around h.
func New(h handler.LambdaHandler, opts Options) http.Handler {
	if opts.RequireAuth {
		h = handler.RequireAuth(h)
	}

	r := mux.NewRouter()
	for _, route := range Routes {
		r.Handle(route, bridge(route, h, opts.Observer)).Methods(http.MethodGet)
	}
	if opts.MetricsHandler != nil {
		r.Handle("/metrics", opts.MetricsHandler).Methods(http.MethodGet)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp, _ := api.Error("Route not found", http.StatusNotFound)
		writeResponse(w, resp)
	})

	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(TokenAuthorizer(opts.APIToken))
	if opts.Timeout > 0 {
		r.Use(func(next http.Handler) http.Handler {
			return http.TimeoutHandler(next, opts.Timeout, `{"responseType":"error","error":"Request timed out"}`)
		})
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         86400,
	})
	return corsHandler.Handler(r)
}

// bridge turns an HTTP request into the API Gateway event the handlers expect.
func bridge(route string, h handler.LambdaHandler, observer RequestObserver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		request := events.APIGatewayProxyRequest{
			Resource:              route,
			Path:                  r.URL.Path,
			HTTPMethod:            r.Method,
			Headers:               firstValues(r.Header),
			QueryStringParameters: firstValues(r.URL.Query()),
			PathParameters:        mux.Vars(r),
			RequestContext: events.APIGatewayProxyRequestContext{
				RequestID:  RequestIDFrom(r.Context()),
				HTTPMethod: r.Method,
				Path:       r.URL.Path,
			},
		}
		if p := PrincipalFrom(r.Context()); p != "" {
			request.RequestContext.Authorizer = map[string]interface{}{"principalId": p}
		}

		resp, err := h(r.Context(), request)
		if err != nil {
			log.Error().Err(err).Str("route", route).Msg("Handler failed")
			resp, _ = api.Error("Internal Server Error", http.StatusInternalServerError)
		}
		writeResponse(w, resp)

		if observer != nil {
			observer.ObserveRequest(route, resp.StatusCode, time.Since(start))
		}
	})
}

func writeResponse(w http.ResponseWriter, resp events.APIGatewayProxyResponse) {
	for k, v := range resp.Headers {
		// CORS is owned by the cors middleware on this path.
		if k == "Access-Control-Allow-Origin" {
			continue
		}
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write([]byte(resp.Body)); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		log.Debug().Err(err).Msg("Writing response body")
	}
}

func firstValues(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
