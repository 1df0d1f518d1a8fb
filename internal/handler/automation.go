package handler

import (
	"net/http"

	"github.com/capitalize-ai/lead-automation/internal/middleware"
	"github.com/capitalize-ai/lead-automation/internal/model"
	"github.com/capitalize-ai/lead-automation/internal/service"
)

// AutomationHandler handles the automation flag endpoints.
type AutomationHandler struct {
	gate *service.AutomationGate
	errs errorWriter
}

// NewAutomationHandler creates a new automation handler.
func NewAutomationHandler(gate *service.AutomationGate, exposeDiagnostics bool) *AutomationHandler {
	return &AutomationHandler{
		gate: gate,
		errs: errorWriter{exposeDiagnostics: exposeDiagnostics},
	}
}

// Toggle handles POST /api/v1/automation/toggle
func (h *AutomationHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req model.AutomationToggleRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}

	ctx := actorContext(r.Context())
	resp, err := h.gate.SetAutomationEnabled(ctx, req.ContactID, *req.AutomationEnabled, req.Reason, middleware.GetUserID(ctx))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Status handles GET /api/v1/automation/status?contactId=
func (h *AutomationHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp, err := h.gate.GetAutomationStatus(r.Context(), r.URL.Query().Get("contactId"))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Permitted handles GET /api/v1/automation/permitted?contactId=
func (h *AutomationHandler) Permitted(w http.ResponseWriter, r *http.Request) {
	contactID := r.URL.Query().Get("contactId")
	permitted, err := h.gate.IsAutomationPermitted(r.Context(), contactID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.AutomationPermittedResponse{
		ContactID: contactID,
		Permitted: permitted,
	})
}
