// Package api provides standardized helper functions for HTTP API responses.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	appErrors "product-catalog/pkg/errors"
)

// ErrorBody is the structured payload of every error response.
type ErrorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is a standardized error message for API responses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Success sends a standardized successful HTTP response with optional JSON data.
func Success(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Error sends a standardized error response with consistent JSON format.
func Error(w http.ResponseWriter, statusCode int, message string) {
	body := ErrorBody{
		Type:    string(appErrors.ErrorTypeBackend),
		Code:    appErrors.CodeInternalError,
		Message: message,
	}
	switch statusCode {
	case http.StatusUnauthorized:
		body.Type, body.Code = string(appErrors.ErrorTypeUnauthorized), appErrors.CodeUnauthenticated
	case http.StatusForbidden:
		body.Type, body.Code = string(appErrors.ErrorTypeForbidden), appErrors.CodeForbidden
	case http.StatusServiceUnavailable, http.StatusRequestTimeout:
		body.Type, body.Code = string(appErrors.ErrorTypeUnavailable), appErrors.CodeServiceUnavailable
	}
	writeError(w, statusCode, body)
}

// FromError maps a classified error to its HTTP status and structured body.
func FromError(w http.ResponseWriter, err error) {
	var appErr *appErrors.AppError
	if !errors.As(err, &appErr) {
		writeError(w, http.StatusInternalServerError, ErrorBody{
			Type:    string(appErrors.ErrorTypeBackend),
			Code:    appErrors.CodeInternalError,
			Message: "Internal server error",
		})
		return
	}
	writeError(w, appErrors.HTTPStatus(appErr), ErrorBody{
		Type:    string(appErr.Type),
		Code:    appErr.Code,
		Message: appErr.Message,
	})
}

// BadRequest sends a 400 with the validation error type.
func BadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrorBody{
		Type:    string(appErrors.ErrorTypeValidation),
		Code:    appErrors.CodeInvalidInput,
		Message: message,
	})
}

func writeError(w http.ResponseWriter, statusCode int, body ErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: body})
}
