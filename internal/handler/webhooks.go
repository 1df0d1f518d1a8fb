package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/capitalize-ai/lead-automation/internal/apperrors"
	"github.com/capitalize-ai/lead-automation/internal/model"
	"github.com/capitalize-ai/lead-automation/internal/service"
)

const (
	maxWebhookBody = 1 << 20
	emptyTwiML     = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
)

// WebhookHandler receives bot platform and carrier callbacks.
type WebhookHandler struct {
	inbound *service.InboundWebhookProcessor
	carrier *service.CarrierWebhookProcessor
	errs    errorWriter
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(inbound *service.InboundWebhookProcessor, carrier *service.CarrierWebhookProcessor, exposeDiagnostics bool) *WebhookHandler {
	return &WebhookHandler{
		inbound: inbound,
		carrier: carrier,
		errs:    errorWriter{exposeDiagnostics: exposeDiagnostics},
	}
}

// Botpress handles POST /webhooks/botpress
func (h *WebhookHandler) Botpress(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.errs.write(w, r, apperrors.Validation("failed to read request body: %v", err))
		return
	}

	var event model.InboundEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		h.errs.write(w, r, apperrors.Validation("invalid JSON payload: %v", err).
			WithDetail("receivedPayload", string(raw)))
		return
	}

	resp, err := h.inbound.HandleInbound(r.Context(), &event)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// TwilioStatus handles POST /webhooks/twilio/status
func (h *WebhookHandler) TwilioStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errs.write(w, r, apperrors.Validation("invalid form body: %v", err))
		return
	}

	status := r.PostForm.Get("MessageStatus")
	if status == "" {
		status = r.PostForm.Get("SmsStatus")
	}
	err := h.carrier.HandleStatusCallback(r.Context(), model.CarrierStatusCallback{
		ProviderMessageID: r.PostForm.Get("MessageSid"),
		Status:            status,
		ErrorCode:         r.PostForm.Get("ErrorCode"),
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TwilioInbound handles POST /webhooks/twilio/inbound. Twilio expects TwiML
// back; an empty Response sends no auto-reply.
func (h *WebhookHandler) TwilioInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errs.write(w, r, apperrors.Validation("invalid form body: %v", err))
		return
	}

	_, err := h.carrier.HandleReply(r.Context(), model.CarrierReply{
		ProviderMessageID: r.PostForm.Get("MessageSid"),
		From:              r.PostForm.Get("From"),
		Body:              r.PostForm.Get("Body"),
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, emptyTwiML)
}
