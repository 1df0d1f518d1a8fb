package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/capitalize-ai/lead-automation/internal/apperrors"
	"github.com/capitalize-ai/lead-automation/internal/model"
	"github.com/capitalize-ai/lead-automation/internal/storage"
	"github.com/capitalize-ai/lead-automation/pkg/logger"
	"github.com/capitalize-ai/lead-automation/pkg/metrics"
)

// maxTransitionAttempts bounds compare-and-set retries on a contested conversation.
const maxTransitionAttempts = 3

// LifecycleService moves conversations through their lifecycle.
type LifecycleService struct {
	contacts       storage.ContactRepo
	conversations  storage.ConversationRepo
	qualifications storage.QualificationStatusRepo
	events         EventPublisher
	logger         *logger.Logger
	now            func() time.Time
}

// NewLifecycleService creates a new lifecycle service.
func NewLifecycleService(repos storage.Repositories, events EventPublisher, log *logger.Logger) *LifecycleService {
	if events == nil {
		events = NopPublisher{}
	}
	return &LifecycleService{
		contacts:       repos.Contacts,
		conversations:  repos.Conversations,
		qualifications: repos.Qualifications,
		events:         events,
		logger:         log,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

type transition struct {
	conv    *model.Conversation
	from    model.ConversationStatus
	changed bool
}

// buildUpdate produces the columns written for a move to status to. It may
// refuse the move, in which case nothing is written.
type buildUpdate func(conv *model.Conversation, to model.ConversationStatus) (model.ConversationUpdate, error)

// apply runs action against the contact's current conversation. The write is
// conditional on the status it was decided from; a lost race reloads and
// decides again.
func (s *LifecycleService) apply(ctx context.Context, contactID string, action model.Action, build buildUpdate) (*transition, error) {
	log := logger.FromContextOr(ctx, s.logger).With(zap.String("contact_id", contactID), zap.String("action", string(action)))

	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		conv, err := s.conversations.FindCurrentByContact(ctx, contactID)
		if err != nil {
			return nil, err
		}
		from := model.StatusOf(conv)

		// Pausing nothing is reported as a missing conversation, not a bad move.
		if conv == nil && action == model.ActionPause {
			metrics.RecordTransition(string(action), string(from), string(from), "not_found")
			return nil, apperrors.NotFound("no conversation found for contact %s", contactID)
		}

		to, changed, err := model.NextStatus(from, action)
		if err != nil {
			metrics.RecordTransition(string(action), string(from), string(from), "rejected")
			return nil, err
		}
		if !changed {
			metrics.RecordTransition(string(action), string(from), string(to), "noop")
			return &transition{conv: conv, from: from}, nil
		}

		update, err := build(conv, to)
		if err != nil {
			metrics.RecordTransition(string(action), string(from), string(to), "rejected")
			return nil, err
		}

		err = s.conversations.UpdateStatus(ctx, conv.ID, from, update)
		if apperrors.IsConflictError(err) {
			metrics.RecordTransitionConflict(string(action))
			log.Debug("conversation changed concurrently, reloading",
				zap.String("conversation_id", conv.ID),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return nil, err
		}

		update.Apply(conv)
		metrics.RecordTransition(string(action), string(from), string(to), "applied")
		log.Info("conversation status changed",
			zap.String("conversation_id", conv.ID),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return &transition{conv: conv, from: from, changed: true}, nil
	}

	return nil, apperrors.Conflict("conversation for contact %s kept changing, try again", contactID)
}

func (s *LifecycleService) requireContact(ctx context.Context, contactID string) (*model.Contact, error) {
	id, err := requireContactID(contactID)
	if err != nil {
		return nil, err
	}
	return s.contacts.FindByID(ctx, id)
}

// syncAutomationFlag mirrors a lifecycle change onto the qualification row.
// It runs after the conversation write has committed; failure is logged and
// counted but never surfaced or compensated.
func (s *LifecycleService) syncAutomationFlag(ctx context.Context, contactID string, enabled bool, reason string) {
	_, err := s.qualifications.Upsert(ctx, &model.QualificationStatus{
		ContactID:              contactID,
		AutomationEnabled:      enabled,
		AutomationChangeReason: optional(reason),
		UpdatedBy:              optional(actorFrom(ctx)),
		UpdatedAt:              s.now(),
	})
	if err != nil {
		metrics.RecordSecondaryWriteFailure("qualification_sync")
		logger.FromContextOr(ctx, s.logger).Warn("failed to sync automation flag",
			zap.String("contact_id", contactID),
			zap.Bool("automation_enabled", enabled),
			zap.Error(err),
		)
	}
}

// Pause stops automated messaging for the contact's current conversation.
func (s *LifecycleService) Pause(ctx context.Context, contactID, reason string) (_ *model.PauseResponse, err error) {
	ctx, span := startSpan(ctx, "LifecycleService.Pause")
	span.SetAttributes(attribute.String("contact.id", contactID))
	defer func() { endSpan(span, err) }()

	contact, err := s.requireContact(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = model.PauseReasonUser
	}

	t, err := s.apply(ctx, contact.ID, model.ActionPause, func(_ *model.Conversation, to model.ConversationStatus) (model.ConversationUpdate, error) {
		return model.ConversationUpdate{
			Status:      to,
			PauseReason: &reason,
			UpdatedAt:   s.now(),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if !t.changed {
		return &model.PauseResponse{
			Success:            true,
			Message:            "Conversation is already paused",
			ConversationID:     t.conv.ID,
			ConversationStatus: t.conv.ConversationStatus,
			Reason:             t.conv.PauseReason(),
		}, nil
	}

	s.syncAutomationFlag(ctx, contact.ID, false, reason)
	s.events.Publish(ctx, newEvent(model.EventConversationPaused, contact.ID, t.conv.ID, reason, map[string]any{
		"previousStatus": string(t.from),
	}))

	return &model.PauseResponse{
		Success:            true,
		Message:            "Conversation paused successfully",
		ConversationID:     t.conv.ID,
		ConversationStatus: t.conv.ConversationStatus,
		Reason:             reason,
	}, nil
}

// Resume re-enables automated messaging. The conversation must carry both bot
// platform correlation ids, otherwise it stays paused.
func (s *LifecycleService) Resume(ctx context.Context, contactID string) (_ *model.ResumeResponse, err error) {
	ctx, span := startSpan(ctx, "LifecycleService.Resume")
	span.SetAttributes(attribute.String("contact.id", contactID))
	defer func() { endSpan(span, err) }()

	contact, err := s.requireContact(ctx, contactID)
	if err != nil {
		return nil, err
	}

	t, err := s.apply(ctx, contact.ID, model.ActionResume, func(conv *model.Conversation, to model.ConversationStatus) (model.ConversationUpdate, error) {
		if !conv.HasIntegrationIDs() {
			return model.ConversationUpdate{}, apperrors.MissingIntegrationData(
				"conversation %s is missing bot platform correlation ids and cannot be resumed", conv.ID,
			).WithDetail("conversationId", conv.ID)
		}
		return model.ConversationUpdate{
			Status:    to,
			UpdatedAt: s.now(),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	resp := &model.ResumeResponse{
		Success:                true,
		ConversationID:         t.conv.ID,
		ConversationStatus:     t.conv.ConversationStatus,
		BotpressConversationID: deref(t.conv.BotpressConversationID),
		BotpressUserID:         deref(t.conv.BotpressUserID),
	}
	if !t.changed {
		resp.Message = "Conversation is already active"
		return resp, nil
	}

	s.syncAutomationFlag(ctx, contact.ID, true, "conversation_resumed")
	s.events.Publish(ctx, newEvent(model.EventConversationResumed, contact.ID, t.conv.ID, "", map[string]any{
		"botpressConversationId": resp.BotpressConversationID,
		"botpressUserId":         resp.BotpressUserID,
	}))

	resp.Message = "Conversation resumed successfully"
	return resp, nil
}

// End closes the contact's current conversation. Ended is terminal.
func (s *LifecycleService) End(ctx context.Context, contactID, reason string) (_ *model.EndResponse, err error) {
	ctx, span := startSpan(ctx, "LifecycleService.End")
	span.SetAttributes(attribute.String("contact.id", contactID))
	defer func() { endSpan(span, err) }()

	contact, err := s.requireContact(ctx, contactID)
	if err != nil {
		return nil, err
	}

	t, err := s.apply(ctx, contact.ID, model.ActionEnd, func(_ *model.Conversation, to model.ConversationStatus) (model.ConversationUpdate, error) {
		now := s.now()
		return model.ConversationUpdate{
			Status:    to,
			EndedAt:   &now,
			UpdatedAt: now,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	resp := &model.EndResponse{
		Success:            true,
		ConversationID:     t.conv.ID,
		ConversationStatus: t.conv.ConversationStatus,
	}
	if !t.changed {
		resp.Message = "Conversation has already ended"
		return resp, nil
	}

	s.events.Publish(ctx, newEvent(model.EventConversationEnded, contact.ID, t.conv.ID, reason, map[string]any{
		"previousStatus": string(t.from),
	}))

	resp.Message = "Conversation ended successfully"
	return resp, nil
}

// GetStatus reads the contact's current conversation.
func (s *LifecycleService) GetStatus(ctx context.Context, contactID string) (*model.ConversationStatusResponse, error) {
	id, err := requireContactID(contactID)
	if err != nil {
		return nil, err
	}

	conv, err := s.conversations.FindCurrentByContact(ctx, id)
	if err != nil {
		return nil, err
	}

	return &model.ConversationStatusResponse{
		ContactID:          id,
		ConversationStatus: model.StatusOf(conv),
		Conversation:       conv,
	}, nil
}

// disableAutomation pauses an active conversation because automation was
// switched off. Any other status is left alone.
func (s *LifecycleService) disableAutomation(ctx context.Context, contactID string) (*transition, error) {
	reason := model.PauseReasonAutomationDisabled
	t, err := s.apply(ctx, contactID, model.ActionAutomationDisabled, func(_ *model.Conversation, to model.ConversationStatus) (model.ConversationUpdate, error) {
		return model.ConversationUpdate{
			Status:      to,
			PauseReason: &reason,
			UpdatedAt:   s.now(),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	if t.changed {
		s.events.Publish(ctx, newEvent(model.EventConversationPaused, contactID, t.conv.ID, reason, map[string]any{
			"previousStatus": string(t.from),
		}))
	}
	return t, nil
}
