package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/alecgard/planner/internal/apperr"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// errorEnvelope is the standard error response shape.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// readJSON decodes the request body into v, enforcing a size limit.
func readJSON(r *http.Request, v interface{}) error {
	lr := io.LimitReader(r.Body, maxBodySize)
	return json.NewDecoder(lr).Decode(v)
}

// RejectionRecorder counts client errors by kind.
type RejectionRecorder interface {
	IncRejection(kind string)
}

// errorWriter maps store errors onto HTTP responses.
type errorWriter struct {
	rejections RejectionRecorder
}

// storeError writes err using the status that matches its kind. Client
// errors carry their message; anything else is logged and answered with an
// opaque 500.
func (e errorWriter) storeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) || !apperr.IsClientError(err) {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"kind", apperr.KindOf(err).String(),
			"error", err,
			"request_id", RequestIDFromContext(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	if e.rejections != nil {
		e.rejections.IncRejection(ae.Kind.String())
	}
	slog.Debug("request rejected", "path", r.URL.Path, "kind", ae.Kind.String(), "message", ae.Message)

	switch ae.Kind {
	case apperr.KindValidation:
		writeError(w, http.StatusUnprocessableEntity, "validation_error", ae.Error())
	case apperr.KindNotFound:
		writeError(w, http.StatusNotFound, "not_found", ae.Error())
	case apperr.KindDuplicate:
		writeError(w, http.StatusConflict, "conflict", ae.Error())
	}
}

func invalidBody(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
}
