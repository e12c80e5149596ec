package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/geobus/backend-go/internal/models"
	"github.com/rs/zerolog/log"
)

type APIResponse struct {
	ResponseType string `json:"responseType"`
}

type ErrorResponse struct {
	APIResponse
	Error string `json:"error"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		APIResponse: APIResponse{ResponseType: "error"},
		Error:       message,
	}
}

func headers() map[string]string {
	return map[string]string{
		"Content-Type":                "application/json",
		"Access-Control-Allow-Origin": "*",
	}
}

// Success writes body as a 200 JSON response.
func Success(body interface{}) (events.APIGatewayProxyResponse, error) {
	return JSON(http.StatusOK, body)
}

func JSON(statusCode int, body interface{}) (events.APIGatewayProxyResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Error("Internal Server Error", http.StatusInternalServerError)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    headers(),
		Body:       string(jsonBody),
	}, nil
}

func Error(message string, statusCode int) (events.APIGatewayProxyResponse, error) {
	body, _ := json.Marshal(NewErrorResponse(message))

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    headers(),
		Body:       string(body),
	}, nil
}

// FromError maps a domain error to its response: not found is 404, bad input
// 400, an unavailable store 503 and anything else 500.
func FromError(err error) (events.APIGatewayProxyResponse, error) {
	var (
		invalidInput *models.InvalidInputError
		invalidCoord InvalidCoordinatesError
	)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return Error(err.Error(), http.StatusNotFound)
	case errors.As(err, &invalidInput), errors.As(err, &invalidCoord):
		return Error(err.Error(), http.StatusBadRequest)
	case models.IsStorageError(err):
		log.Error().Err(err).Msg("Storage unavailable")
		return Error("Service temporarily unavailable", http.StatusServiceUnavailable)
	default:
		log.Error().Err(err).Msg("Unhandled error")
		return Error("Internal Server Error", http.StatusInternalServerError)
	}
}
