package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/lead-automation/internal/apperrors"
	"github.com/capitalize-ai/lead-automation/pkg/logger"
)

// diagnosticKeys are error details that echo payloads or internals back to the
// caller. They are dropped unless diagnostics are exposed.
var diagnosticKeys = map[string]bool{
	"receivedPayload":     true,
	"recentConversations": true,
	"dbError":             true,
}

type errorMapping struct {
	status int
	code   string
}

var errorMappings = []struct {
	kind error
	errorMapping
}{
	{apperrors.ErrValidation, errorMapping{http.StatusBadRequest, "validation_error"}},
	{apperrors.ErrNotFound, errorMapping{http.StatusNotFound, "not_found"}},
	{apperrors.ErrInvalidTransition, errorMapping{http.StatusBadRequest, "invalid_transition"}},
	{apperrors.ErrMissingIntegrationData, errorMapping{http.StatusBadRequest, "missing_integration_data"}},
	{apperrors.ErrDelivery, errorMapping{http.StatusBadGateway, "delivery_failed"}},
	{apperrors.ErrConflict, errorMapping{http.StatusConflict, "conflict"}},
	{apperrors.ErrDuplicate, errorMapping{http.StatusConflict, "duplicate"}},
	{apperrors.ErrUnauthorized, errorMapping{http.StatusUnauthorized, "unauthorized"}},
	{apperrors.ErrStorage, errorMapping{http.StatusInternalServerError, "storage_error"}},
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// errorWriter maps service errors onto HTTP responses.
type errorWriter struct {
	exposeDiagnostics bool
}

func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	appErr, ok := apperrors.As(err)
	if !ok {
		log.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	mapping := errorMapping{http.StatusInternalServerError, "internal_error"}
	for _, m := range errorMappings {
		if errors.Is(appErr.Kind, m.kind) {
			mapping = m.errorMapping
			break
		}
	}

	if mapping.status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("code", mapping.code), zap.Error(err))
	} else {
		log.Info("request rejected", zap.String("code", mapping.code), zap.String("reason", appErr.Message))
	}

	body := map[string]any{
		"error": appErr.Message,
		"code":  mapping.code,
	}
	for key, val := range appErr.Details {
		if diagnosticKeys[key] && !e.exposeDiagnostics {
			continue
		}
		body[key] = val
	}
	writeJSON(w, mapping.status, body)
}
