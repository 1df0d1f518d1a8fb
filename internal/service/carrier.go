package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/lead-automation/internal/apperrors"
	"github.com/capitalize-ai/lead-automation/internal/model"
	"github.com/capitalize-ai/lead-automation/internal/storage"
	"github.com/capitalize-ai/lead-automation/pkg/logger"
	"github.com/capitalize-ai/lead-automation/pkg/metrics"
	"github.com/capitalize-ai/lead-automation/pkg/phone"
)

// CarrierWebhookProcessor reconciles SMS carrier callbacks: delivery reports
// for messages we sent and replies from leads.
type CarrierWebhookProcessor struct {
	contacts      storage.ContactRepo
	conversations storage.ConversationRepo
	messages      storage.MessageRepo
	receipts      storage.WebhookReceiptRepo
	events        EventPublisher
	cfg           InboundConfig
	logger        *logger.Logger
	now           func() time.Time
}

// NewCarrierWebhookProcessor creates a new processor.
func NewCarrierWebhookProcessor(repos storage.Repositories, events EventPublisher, cfg InboundConfig, log *logger.Logger) *CarrierWebhookProcessor {
	if events == nil {
		events = NopPublisher{}
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = defaultDedupWindow
	}
	return &CarrierWebhookProcessor{
		contacts:      repos.Contacts,
		conversations: repos.Conversations,
		messages:      repos.Messages,
		receipts:      repos.Receipts,
		events:        events,
		cfg:           cfg,
		logger:        log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// carrierStatus maps a Twilio message status onto a delivery status. Interim
// statuses report false.
func carrierStatus(status string) (model.DeliveryStatus, bool) {
	switch strings.ToLower(status) {
	case "delivered", "read":
		return model.DeliveryDelivered, true
	case "failed", "undelivered", "canceled":
		return model.DeliveryFailed, true
	default:
		return "", false
	}
}

// HandleStatusCallback applies a carrier delivery report to the message it
// refers to.
func (p *CarrierWebhookProcessor) HandleStatusCallback(ctx context.Context, cb model.CarrierStatusCallback) (err error) {
	ctx, span := startSpan(ctx, "CarrierWebhookProcessor.HandleStatusCallback")
	defer func() { endSpan(span, err) }()

	if cb.ProviderMessageID == "" || cb.Status == "" {
		metrics.RecordWebhook(model.SourceSMS, "invalid")
		return apperrors.Validation("MessageSid and MessageStatus are required")
	}

	log := logger.FromContextOr(ctx, p.logger).With(
		zap.String("provider_message_id", cb.ProviderMessageID),
		zap.String("carrier_status", cb.Status),
	)

	status, final := carrierStatus(cb.Status)
	if !final {
		metrics.RecordWebhook(model.SourceSMS, "interim")
		log.Debug("ignoring interim carrier status")
		return nil
	}

	msg, err := p.messages.FindByExternalID(ctx, cb.ProviderMessageID)
	if err != nil {
		metrics.RecordWebhook(model.SourceSMS, "message_not_found")
		return err
	}

	metadata := map[string]any{"carrierStatus": cb.Status}
	if cb.ErrorCode != "" {
		metadata["carrierErrorCode"] = cb.ErrorCode
	}
	if err := p.messages.UpdateDelivery(ctx, msg.ID, model.DeliveryUpdate{
		Status:    status,
		Metadata:  metadata,
		UpdatedAt: p.now(),
	}); err != nil {
		metrics.RecordWebhook(model.SourceSMS, "error")
		return err
	}
	metrics.RecordSMS("callback", string(status))
	metrics.RecordWebhook(model.SourceSMS, "status_applied")

	eventType := model.EventMessageDelivered
	if status == model.DeliveryFailed {
		eventType = model.EventMessageFailed
		log.Warn("carrier reported delivery failure", zap.String("message_id", msg.ID), zap.String("error_code", cb.ErrorCode))
	}

	conv, convErr := p.conversations.FindByID(ctx, msg.ConversationID)
	if convErr != nil {
		log.Warn("failed to load conversation for delivery event", zap.String("message_id", msg.ID), zap.Error(convErr))
		return nil
	}
	p.events.Publish(ctx, newEvent(eventType, conv.ContactID, conv.ID, "", map[string]any{
		"messageId":         msg.ID,
		"providerMessageId": cb.ProviderMessageID,
		"carrierStatus":     cb.Status,
	}))
	return nil
}

// HandleReply logs an SMS sent by a lead against the lead's current
// conversation and announces it to subscribers.
func (p *CarrierWebhookProcessor) HandleReply(ctx context.Context, reply model.CarrierReply) (_ *model.CarrierReplyResponse, err error) {
	ctx, span := startSpan(ctx, "CarrierWebhookProcessor.HandleReply")
	defer func() { endSpan(span, err) }()

	if reply.ProviderMessageID == "" || reply.From == "" {
		metrics.RecordWebhook(model.SourceSMS, "invalid")
		return nil, apperrors.Validation("MessageSid and From are required")
	}
	if !phone.Valid(reply.From) {
		metrics.RecordWebhook(model.SourceSMS, "invalid")
		return nil, apperrors.Validation("sender %q is not a valid phone number", reply.From).
			WithDetail("from", reply.From)
	}

	log := logger.FromContextOr(ctx, p.logger).With(zap.String("provider_message_id", reply.ProviderMessageID))

	claimed, existing, err := p.receipts.Claim(ctx, &model.WebhookReceipt{
		ExternalID: reply.ProviderMessageID,
		Source:     model.SourceSMS,
		ReceivedAt: p.now(),
	}, p.cfg.DedupWindow)
	if err != nil {
		return nil, err
	}
	if !claimed {
		metrics.RecordWebhook(model.SourceSMS, "duplicate")
		return &model.CarrierReplyResponse{MessageID: deref(existing.MessageID), Duplicate: true}, nil
	}

	written := false
	defer func() {
		if !written {
			if relErr := p.receipts.Release(context.WithoutCancel(ctx), reply.ProviderMessageID); relErr != nil {
				log.Warn("failed to release webhook receipt", zap.Error(relErr))
			}
		}
	}()

	contact, err := p.contacts.FindByPhone(ctx, reply.From)
	if err != nil {
		metrics.RecordWebhook(model.SourceSMS, "contact_not_found")
		return nil, err
	}

	conv, err := p.conversations.FindCurrentByContact(ctx, contact.ID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		metrics.RecordWebhook(model.SourceSMS, "conversation_not_found")
		return nil, apperrors.NotFound("no conversation found for contact %s", contact.ID)
	}

	sid := reply.ProviderMessageID
	msg := &model.Message{
		ID:                uuid.Must(uuid.NewV7()).String(),
		ConversationID:    conv.ID,
		Direction:         model.DirectionInbound,
		Source:            model.SourceSMS,
		MessageType:       model.MessageTypeText,
		Content:           reply.Body,
		DeliveryStatus:    model.DeliveryDelivered,
		ExternalMessageID: &sid,
		Metadata:          map[string]any{"from": phone.E164(reply.From)},
		CreatedAt:         p.now(),
		UpdatedAt:         p.now(),
	}
	if err := p.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	written = true

	if err := p.receipts.AttachMessage(ctx, sid, msg.ID); err != nil {
		metrics.RecordSecondaryWriteFailure("receipt_attach")
		log.Warn("failed to attach message to webhook receipt", zap.String("message_id", msg.ID), zap.Error(err))
	}

	metrics.RecordWebhook(model.SourceSMS, "reply_logged")
	log.Info("lead reply logged",
		zap.String("contact_id", contact.ID),
		zap.String("conversation_id", conv.ID),
		zap.String("conversation_status", string(conv.ConversationStatus)),
	)

	p.events.Publish(ctx, newEvent(model.EventLeadReplied, contact.ID, conv.ID, "", map[string]any{
		"messageId":              msg.ID,
		"body":                   reply.Body,
		"conversationStatus":     string(conv.ConversationStatus),
		"botpressConversationId": deref(conv.BotpressConversationID),
		"botpressUserId":         deref(conv.BotpressUserID),
	}))

	return &model.CarrierReplyResponse{
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		ContactID:      contact.ID,
	}, nil
}
