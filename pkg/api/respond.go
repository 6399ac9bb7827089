package api

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/emergent/skillsmarket/pkg/logger"
	"github.com/emergent/skillsmarket/pkg/marketplace"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Revision   string `json:"revision,omitempty"`
}

type dataResponse struct {
	Data any `json:"data"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.G(r.Context()).WithError(err).Error("failed to encode JSON response")
	}
}

// writeData wraps data in {"data": ...}.
func writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, r, status, dataResponse{Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, ErrorResponse{
		Error:      errorTitle(status),
		Message:    message,
		StatusCode: status,
	})
}

// writeServiceError maps a service failure to its status code. Unclassified
// errors are logged and reported as 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *marketplace.Error
	if !errors.As(err, &svcErr) {
		logger.G(r.Context()).WithError(err).Error("request failed")
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	status := statusFor(svcErr.Kind)
	if status >= http.StatusInternalServerError {
		logger.G(r.Context()).WithError(err).WithField("kind", svcErr.Kind).Error("request failed")
	}
	writeJSON(w, r, status, ErrorResponse{
		Error:      errorTitle(status),
		Message:    svcErr.Message,
		StatusCode: status,
		Revision:   svcErr.Revision,
	})
}

func statusFor(kind marketplace.ErrorKind) int {
	switch kind {
	case marketplace.KindValidation:
		return http.StatusBadRequest
	case marketplace.KindNotFound:
		return http.StatusNotFound
	case marketplace.KindConflict:
		return http.StatusConflict
	case marketplace.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorTitle(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Validation error"
	case http.StatusNotFound:
		return "Not found"
	case http.StatusInternalServerError:
		return "Internal server error"
	default:
		return http.StatusText(status)
	}
}
