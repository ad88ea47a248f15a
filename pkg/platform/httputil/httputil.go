// Package httputil writes JSON responses and maps ledger error codes to HTTP
// status codes.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "ftledger/pkg/domain-errors"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as an ErrorResponse. Internal failures never leak
// their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		var coded *dErrors.Error
		if errors.As(err, &coded) && coded.Message != "" {
			resp.Description = coded.Message
		}
	}
	WriteJSON(w, StatusFor(code), resp)
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotAdmin, dErrors.CodeCantDeleteYourself, dErrors.CodeNotAllowedToTransfer:
		return http.StatusForbidden
	case dErrors.CodeTxAlreadyExists, dErrors.CodeAdminAlreadyExists:
		return http.StatusConflict
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	}
	if code.IsDomain() {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
