package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/geobus/backend-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionsHandler_LinePositions(t *testing.T) {
	var gotLine string
	var gotMinutes int
	tracker := &mockTracker{
		recentFunc: func(_ context.Context, line string, minutes int) ([]models.BusPosition, error) {
			gotLine, gotMinutes = line, minutes
			return []models.BusPosition{}, nil
		},
	}
	h := NewPositionsHandler(tracker, PositionDefaults{WindowMinutes: 30})

	tests := []struct {
		name        string
		params      map[string]string
		line        string
		wantStatus  int
		wantMinutes int
	}{
		{name: "default window", line: "L1", wantStatus: http.StatusOK, wantMinutes: 30},
		{name: "explicit window", line: "L1", params: map[string]string{"minutes": "10"}, wantStatus: http.StatusOK, wantMinutes: 10},
		{name: "bad window", line: "L1", params: map[string]string{"minutes": "-1"}, wantStatus: http.StatusBadRequest},
		{name: "missing line", line: "", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotMinutes = 0
			resp, err := h.HandleRequest(context.Background(), events.APIGatewayProxyRequest{
				Resource:              RouteLinePositions,
				PathParameters:        map[string]string{"line": tt.line},
				QueryStringParameters: tt.params,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "[]", resp.Body)
				assert.Equal(t, tt.line, gotLine)
				assert.Equal(t, tt.wantMinutes, gotMinutes)
			}
		})
	}
}

func TestPositionsHandler_BusPosition(t *testing.T) {
	at := time.Date(2024, 3, 10, 11, 59, 0, 0, time.UTC)
	tracker := &mockTracker{
		lastFunc: func(_ context.Context, busID string) (*models.BusPosition, error) {
			if busID == "B1" {
				return &models.BusPosition{ID: 5, BusID: "B1", Line: "L1", Latitude: 31.6, Longitude: -8, Timestamp: at}, nil
			}
			return nil, models.NewNotFoundError("bus position", busID)
		},
	}
	h := NewPositionsHandler(tracker, PositionDefaults{})

	resp, err := h.HandleRequest(context.Background(), events.APIGatewayProxyRequest{
		Resource:       RouteBusPosition,
		PathParameters: map[string]string{"busId": "B1"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":5,"busId":"B1","latitude":31.6,"longitude":-8,"line":"L1","timestamp":"2024-03-10T11:59:00Z"}`, resp.Body)

	resp, err = h.HandleRequest(context.Background(), events.APIGatewayProxyRequest{
		Resource:       RouteBusPosition,
		PathParameters: map[string]string{"busId": "B2"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPositionsHandler_NearStop(t *testing.T) {
	var gotRadius float64
	var gotWindow time.Duration
	tracker := &mockTracker{
		nearFunc: func(_ context.Context, stopID int64, radius float64, window time.Duration) ([]models.BusPosition, error) {
			gotRadius, gotWindow = radius, window
			if stopID == 404 {
				return nil, models.NewNotFoundError("stop", stopID)
			}
			return []models.BusPosition{{ID: 1, BusID: "B1"}}, nil
		},
	}
	h := NewPositionsHandler(tracker, PositionDefaults{RadiusMeters: 5000, FallbackWindow: time.Hour})

	tests := []struct {
		name       string
		stopID     string
		params     map[string]string
		wantStatus int
		wantRadius float64
	}{
		{name: "default radius", stopID: "1", wantStatus: http.StatusOK, wantRadius: 5000},
		{name: "explicit radius", stopID: "1", params: map[string]string{"radius": "300"}, wantStatus: http.StatusOK, wantRadius: 300},
		{name: "bad radius", stopID: "1", params: map[string]string{"radius": "0"}, wantStatus: http.StatusBadRequest},
		{name: "bad stop id", stopID: "x", wantStatus: http.StatusBadRequest},
		{name: "unknown stop", stopID: "404", wantStatus: http.StatusNotFound, wantRadius: 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotRadius = 0
			resp, err := h.HandleRequest(context.Background(), events.APIGatewayProxyRequest{
				Resource:              RouteNearStop,
				PathParameters:        map[string]string{"stopId": tt.stopID},
				QueryStringParameters: tt.params,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantRadius > 0 {
				assert.Equal(t, tt.wantRadius, gotRadius)
				assert.Equal(t, time.Hour, gotWindow)
			}
		})
	}
}

func TestPositionsHandler_RecentAndCount(t *testing.T) {
	tracker := &mockTracker{
		allRecentFunc: func(_ context.Context, minutes int) ([]models.BusPosition, error) {
			assert.Equal(t, 30, minutes)
			return []models.BusPosition{{ID: 1}, {ID: 2}}, nil
		},
		countFunc: func(context.Context) (int64, error) {
			return 42, nil
		},
	}
	h := NewPositionsHandler(tracker, PositionDefaults{})

	resp, err := h.HandleRequest(context.Background(), events.APIGatewayProxyRequest{Resource: RouteRecentPositions})
	require.NoError(t, err)
	var positions []models.BusPosition
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &positions))
	assert.Len(t, positions, 2)

	resp, err = h.HandleRequest(context.Background(), events.APIGatewayProxyRequest{Resource: RoutePositionCount})
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":42}`, resp.Body)
}

func TestPositionsHandler_StorageFailure(t *testing.T) {
	tracker := &mockTracker{
		countFunc: func(context.Context) (int64, error) {
			return 0, models.NewStorageError("count positions", errors.New("refused"))
		},
	}
	resp, err := NewPositionsHandler(tracker, PositionDefaults{}).HandleRequest(context.Background(),
		events.APIGatewayProxyRequest{Resource: RoutePositionCount})
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
