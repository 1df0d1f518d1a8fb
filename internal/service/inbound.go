package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/capitalize-ai/lead-automation/internal/apperrors"
	"github.com/capitalize-ai/lead-automation/internal/model"
	"github.com/capitalize-ai/lead-automation/internal/sms"
	"github.com/capitalize-ai/lead-automation/internal/storage"
	"github.com/capitalize-ai/lead-automation/pkg/logger"
	"github.com/capitalize-ai/lead-automation/pkg/metrics"
)

const (
	defaultDedupWindow       = 24 * time.Hour
	recentConversationsLimit = 5
)

// InboundConfig configures webhook processing.
type InboundConfig struct {
	DedupWindow time.Duration
}

// InboundWebhookProcessor relays bot platform messages to the lead over SMS.
type InboundWebhookProcessor struct {
	contacts      storage.ContactRepo
	conversations storage.ConversationRepo
	messages      storage.MessageRepo
	receipts      storage.WebhookReceiptRepo
	gateway       sms.Gateway
	cfg           InboundConfig
	logger        *logger.Logger
	now           func() time.Time
}

// NewInboundWebhookProcessor creates a new processor.
func NewInboundWebhookProcessor(repos storage.Repositories, gateway sms.Gateway, cfg InboundConfig, log *logger.Logger) *InboundWebhookProcessor {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = defaultDedupWindow
	}
	if gateway == nil {
		gateway = sms.Disabled{}
	}
	return &InboundWebhookProcessor{
		contacts:      repos.Contacts,
		conversations: repos.Conversations,
		messages:      repos.Messages,
		receipts:      repos.Receipts,
		gateway:       gateway,
		cfg:           cfg,
		logger:        log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// HandleInbound logs the bot's message against its conversation and sends it to
// the lead. The conversation status is never changed, and ended conversations
// still get their message relayed.
func (p *InboundWebhookProcessor) HandleInbound(ctx context.Context, event *model.InboundEvent) (_ *model.InboundResponse, err error) {
	ctx, span := startSpan(ctx, "InboundWebhookProcessor.HandleInbound")
	defer func() { endSpan(span, err) }()

	if event == nil || strings.TrimSpace(event.ConversationID) == "" || strings.TrimSpace(event.Text) == "" {
		metrics.RecordWebhook(model.SourceBotPlatform, "invalid")
		return nil, apperrors.Validation("conversationId and text are required").WithDetail("receivedPayload", event)
	}
	span.SetAttributes(attribute.String("conversation.id", event.ConversationID))

	log := logger.FromContextOr(ctx, p.logger).With(zap.String("conversation_id", event.ConversationID))

	externalID := event.ExternalMessageID()
	claimed := false
	if externalID != "" {
		ok, existing, err := p.receipts.Claim(ctx, &model.WebhookReceipt{
			ExternalID: externalID,
			Source:     model.SourceBotPlatform,
			ReceivedAt: p.now(),
		}, p.cfg.DedupWindow)
		if err != nil {
			metrics.RecordWebhook(model.SourceBotPlatform, "error")
			return nil, err
		}
		if !ok {
			metrics.RecordWebhook(model.SourceBotPlatform, "duplicate")
			log.Info("duplicate webhook delivery ignored", zap.String("external_id", externalID))
			return p.duplicateResponse(ctx, event, existing), nil
		}
		claimed = true
	}

	// Until the message row exists a redelivery must be able to retry.
	messageWritten := false
	defer func() {
		if claimed && !messageWritten {
			if relErr := p.receipts.Release(context.WithoutCancel(ctx), externalID); relErr != nil {
				log.Warn("failed to release webhook receipt", zap.String("external_id", externalID), zap.Error(relErr))
			}
		}
	}()

	conv, err := p.conversations.FindByID(ctx, event.ConversationID)
	if err != nil {
		metrics.RecordWebhook(model.SourceBotPlatform, "conversation_not_found")
		return nil, p.lookupError(ctx, event.ConversationID, err)
	}

	contact, err := p.contacts.FindByID(ctx, conv.ContactID)
	if err != nil {
		metrics.RecordWebhook(model.SourceBotPlatform, "contact_not_found")
		return nil, err
	}

	if conv.ConversationStatus == model.StatusEnded {
		log.Info("relaying bot message for ended conversation")
	}

	msg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		Direction:      model.DirectionOutbound,
		Source:         model.SourceBotPlatform,
		MessageType:    model.MessageTypeText,
		Content:        event.Text,
		DeliveryStatus: model.DeliveryPending,
		Metadata:       inboundMetadata(event, externalID, conv.ConversationStatus),
		CreatedAt:      p.now(),
		UpdatedAt:      p.now(),
	}
	if err := p.messages.Create(ctx, msg); err != nil {
		metrics.RecordWebhook(model.SourceBotPlatform, "error")
		return nil, err
	}
	messageWritten = true

	if claimed {
		if err := p.receipts.AttachMessage(ctx, externalID, msg.ID); err != nil {
			metrics.RecordSecondaryWriteFailure("receipt_attach")
			log.Warn("failed to attach message to webhook receipt", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}

	result, sendErr := p.gateway.Send(ctx, contact.Phone, event.Text)
	if sendErr != nil {
		p.recordDelivery(ctx, msg.ID, model.DeliveryUpdate{
			Status:    model.DeliveryFailed,
			Metadata:  map[string]any{"error": sendErr.Error()},
			UpdatedAt: p.now(),
		})
		metrics.RecordWebhook(model.SourceBotPlatform, "delivery_failed")
		log.Warn("sms delivery failed", zap.String("message_id", msg.ID), zap.Error(sendErr))
		return nil, apperrors.Delivery(sendErr, "failed to deliver message %s", msg.ID).
			WithDetail("messageId", msg.ID).
			WithDetail("conversationId", conv.ID)
	}

	update := model.DeliveryUpdate{
		Status:    model.DeliveryDelivered,
		UpdatedAt: p.now(),
	}
	if result != nil {
		update.ExternalMessageID = optional(result.ProviderMessageID)
		if result.Status != "" {
			update.Metadata = map[string]any{"providerStatus": result.Status}
		}
	}
	p.recordDelivery(ctx, msg.ID, update)

	metrics.RecordWebhook(model.SourceBotPlatform, "delivered")
	log.Info("bot message relayed", zap.String("message_id", msg.ID))

	return &model.InboundResponse{
		Success:        true,
		MessageID:      msg.ID,
		ConversationID: conv.ID,
	}, nil
}

// duplicateResponse reports the message written for the first delivery. The
// lookup is informational, so a failure leaves the status empty.
func (p *InboundWebhookProcessor) duplicateResponse(ctx context.Context, event *model.InboundEvent, existing *model.WebhookReceipt) *model.InboundResponse {
	resp := &model.InboundResponse{
		Success:        true,
		MessageID:      deref(existing.MessageID),
		ConversationID: event.ConversationID,
		Duplicate:      true,
	}
	if resp.MessageID == "" {
		return resp
	}
	msg, err := p.messages.FindByID(ctx, resp.MessageID)
	if err != nil {
		logger.FromContextOr(ctx, p.logger).Debug("failed to load original message for duplicate delivery",
			zap.String("message_id", resp.MessageID), zap.Error(err))
		return resp
	}
	resp.ConversationID = msg.ConversationID
	resp.DeliveryStatus = msg.DeliveryStatus
	return resp
}

// lookupError decorates a failed conversation lookup with diagnostics.
func (p *InboundWebhookProcessor) lookupError(ctx context.Context, conversationID string, err error) error {
	if !apperrors.IsNotFoundError(err) {
		if appErr, ok := apperrors.As(err); ok {
			return appErr.WithDetail("dbError", err.Error())
		}
		return err
	}

	notFound := apperrors.NotFound("conversation %s not found", conversationID).
		WithDetail("searchedId", conversationID)

	recent, listErr := p.conversations.ListRecent(ctx, recentConversationsLimit)
	if listErr != nil {
		logger.FromContextOr(ctx, p.logger).Warn("failed to list recent conversations", zap.Error(listErr))
		return notFound
	}
	return notFound.WithDetail("recentConversations", model.Summaries(recent))
}

// recordDelivery writes the send outcome. The message has already gone out
// (or failed) at this point, so a write failure is only logged.
func (p *InboundWebhookProcessor) recordDelivery(ctx context.Context, messageID string, update model.DeliveryUpdate) {
	if err := p.messages.UpdateDelivery(ctx, messageID, update); err != nil {
		metrics.RecordSecondaryWriteFailure("delivery_status")
		logger.FromContextOr(ctx, p.logger).Warn("failed to record delivery status",
			zap.String("message_id", messageID),
			zap.String("status", string(update.Status)),
			zap.Error(err),
		)
	}
	metrics.RecordSMS("relay", string(update.Status))
}

func inboundMetadata(event *model.InboundEvent, externalID string, status model.ConversationStatus) map[string]any {
	md := map[string]any{
		"conversationStatus": string(status),
	}
	if externalID != "" {
		md["externalMessageId"] = externalID
	}
	if event.UserID != "" {
		md["userId"] = event.UserID
	}
	return md
}
