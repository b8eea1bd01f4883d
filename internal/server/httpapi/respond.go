// Package httpapi exposes the gateway over HTTP: routing, request decoding,
// plan resolution, and the mapping from the internal error taxonomy to
// status codes and structured error bodies.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/filegate/internal/common"
)

// Machine-readable error codes carried in every error body.
const (
	CodeValidationError = "validation_error"
	CodeQuotaExceeded   = "quota_exceeded"
	CodeUnauthorized    = "unauthorized"
	CodeForbidden       = "forbidden"
	CodeNotFound        = "not_found"
	CodeUpstreamError   = "upstream_error"
	CodeInternalError   = "internal_error"
)

// errorBody is the uniform error response: {"error": {"code", "message"}},
// with limitBytes attached to quota violations.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	LimitBytes int64  `json:"limitBytes,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates a taxonomy error into a status code and body.
// Anything outside the taxonomy is an internal error with the message
// withheld from the client.
func writeError(w http.ResponseWriter, err error) {
	var quotaErr *common.QuotaError
	switch {
	case errors.As(err, &quotaErr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
			Code:       CodeQuotaExceeded,
			Message:    quotaErr.Error(),
			LimitBytes: quotaErr.Limit,
		}})
	case errors.Is(err, common.ErrorValidation):
		writeErrorBody(w, http.StatusBadRequest, CodeValidationError, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		writeErrorBody(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, common.ErrorUnauthorized):
		writeErrorBody(w, http.StatusUnauthorized, CodeUnauthorized, "storage rejected the gateway credentials; check the configured access key")
	case errors.Is(err, common.ErrorForbidden):
		writeErrorBody(w, http.StatusForbidden, CodeForbidden, "storage denied access; check the bucket policy for the gateway credentials")
	case errors.Is(err, common.ErrorTransient):
		writeErrorBody(w, http.StatusBadGateway, CodeUpstreamError, "storage is temporarily unavailable; retry with backoff")
	default:
		writeErrorBody(w, http.StatusInternalServerError, CodeInternalError, "internal error")
	}
}

func writeErrorBody(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, errorBody{Error: errorDetail{Code: code, Message: message}})
}
