package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/camden-git/facetrack/logger"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string   `json:"code"`
	Status string   `json:"status"`
	Detail string   `json:"detail"`
	Fields []string `json:"fields,omitempty"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

const (
	CodeInvalidRequest = "invalid_request"
	CodeInvalidCapture = "invalid_capture"
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeInternal       = "internal_error"
	CodeUnavailable    = "unavailable"
	CodeUnauthorized   = "unauthorized"
)

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	writeAPIErrorDetail(w, httpStatus, APIErrorDetail{Code: code, Detail: detail})
}

func writeAPIErrorDetail(w http.ResponseWriter, httpStatus int, detail APIErrorDetail) {
	detail.Status = strconv.Itoa(httpStatus)
	writeJSON(w, httpStatus, APIErrorResponse{Errors: []APIErrorDetail{detail}})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logger.Named("http").Warnf("error encoding JSON response: %v", err)
		}
	}
}
