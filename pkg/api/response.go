// Package api holds the API Gateway plumbing shared by the Lambda handlers:
// JSON responses, error status mapping and request parsing.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"gitlab.connectwisedev.com/backoffice-service/models"
)

type Response = events.APIGatewayProxyResponse

type Request = events.APIGatewayProxyRequest

func headers(methods string) map[string]string {
	return map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": methods,
		"Access-Control-Allow-Headers": "Content-Type,Authorization",
	}
}

// JSON marshals body into a response with the given status.
func JSON(status int, body any) (Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Response{
			StatusCode: http.StatusInternalServerError,
			Headers:    headers("*"),
			Body:       `{"message": "Failed to format response"}`,
		}, nil
	}
	return Response{
		StatusCode: status,
		Headers:    headers("GET,POST,PUT,DELETE"),
		Body:       string(payload),
	}, nil
}

// Cached is JSON with a public Cache-Control max age in seconds.
func Cached(body any, maxAge int) (Response, error) {
	resp, err := JSON(http.StatusOK, body)
	if resp.StatusCode == http.StatusOK {
		resp.Headers["Cache-Control"] = "public, max-age=" + strconv.Itoa(maxAge) + ", must-revalidate"
	}
	return resp, err
}

type errorBody struct {
	Message string      `json:"message"`
	Kind    models.Kind `json:"kind"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind models.Kind) int {
	switch kind {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindInsufficientStock, models.KindCapacityExceeded, models.KindInvalidState, models.KindConflict:
		return http.StatusConflict
	case models.KindNotAvailable:
		return http.StatusUnprocessableEntity
	case models.KindPersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error turns err into a response. Internal errors are logged and their
// message is hidden from the caller.
func Error(logger *zap.Logger, err error) (Response, error) {
	kind := models.KindOf(err)
	status := StatusFor(kind)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("kind", string(kind)), zap.Error(err))
		if kind == models.KindInternal {
			msg = "Internal server error"
		}
	} else {
		logger.Info("request rejected", zap.String("kind", string(kind)), zap.Error(err))
	}
	return JSON(status, errorBody{Message: msg, Kind: kind})
}

// Forbidden is returned when the caller lacks the role for a route.
func Forbidden() (Response, error) {
	return JSON(http.StatusForbidden, errorBody{Message: "Forbidden"})
}

func NotFound() (Response, error) {
	return JSON(http.StatusNotFound, errorBody{Message: "Route not found", Kind: models.KindNotFound})
}

// NoContent answers successful deletes.
func NoContent() (Response, error) {
	return Response{StatusCode: http.StatusNoContent, Headers: headers("GET,POST,PUT,DELETE")}, nil
}
