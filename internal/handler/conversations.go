// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"net/http"

	"github.com/capitalize-ai/lead-automation/internal/middleware"
	"github.com/capitalize-ai/lead-automation/internal/model"
	"github.com/capitalize-ai/lead-automation/internal/service"
)

// ConversationHandler handles conversation lifecycle endpoints.
type ConversationHandler struct {
	lifecycle *service.LifecycleService
	errs      errorWriter
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(lifecycle *service.LifecycleService, exposeDiagnostics bool) *ConversationHandler {
	return &ConversationHandler{
		lifecycle: lifecycle,
		errs:      errorWriter{exposeDiagnostics: exposeDiagnostics},
	}
}

// actorContext tags ctx with the authenticated operator for audit columns.
func actorContext(ctx context.Context) context.Context {
	return service.ContextWithActor(ctx, middleware.GetUserID(ctx))
}

// Pause handles POST /api/v1/conversations/pause
func (h *ConversationHandler) Pause(w http.ResponseWriter, r *http.Request) {
	var req model.PauseRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}

	resp, err := h.lifecycle.Pause(actorContext(r.Context()), req.ContactID, req.Reason)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Resume handles POST /api/v1/conversations/resume
func (h *ConversationHandler) Resume(w http.ResponseWriter, r *http.Request) {
	var req model.ResumeRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}

	resp, err := h.lifecycle.Resume(actorContext(r.Context()), req.ContactID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// End handles POST /api/v1/conversations/end
func (h *ConversationHandler) End(w http.ResponseWriter, r *http.Request) {
	var req model.EndRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}

	resp, err := h.lifecycle.End(actorContext(r.Context()), req.ContactID, req.Reason)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Status handles GET /api/v1/conversations/status?contactId=
func (h *ConversationHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp, err := h.lifecycle.GetStatus(r.Context(), r.URL.Query().Get("contactId"))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
