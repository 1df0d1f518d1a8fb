package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/capitalize-ai/lead-automation/internal/model"
	"github.com/capitalize-ai/lead-automation/internal/storage"
	"github.com/capitalize-ai/lead-automation/pkg/logger"
	"github.com/capitalize-ai/lead-automation/pkg/metrics"
)

// AutomationGate owns the per-contact automation flag and answers whether an
// automated send is allowed right now.
type AutomationGate struct {
	contacts       storage.ContactRepo
	conversations  storage.ConversationRepo
	qualifications storage.QualificationStatusRepo
	lifecycle      *LifecycleService
	events         EventPublisher
	logger         *logger.Logger
	now            func() time.Time
}

// NewAutomationGate creates a new automation gate.
func NewAutomationGate(repos storage.Repositories, lifecycle *LifecycleService, events EventPublisher, log *logger.Logger) *AutomationGate {
	if events == nil {
		events = NopPublisher{}
	}
	return &AutomationGate{
		contacts:       repos.Contacts,
		conversations:  repos.Conversations,
		qualifications: repos.Qualifications,
		lifecycle:      lifecycle,
		events:         events,
		logger:         log,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// SetAutomationEnabled writes the flag. Disabling also pauses an active
// conversation; enabling never resumes one.
func (g *AutomationGate) SetAutomationEnabled(ctx context.Context, contactID string, enabled bool, reason, actor string) (_ *model.AutomationToggleResponse, err error) {
	ctx, span := startSpan(ctx, "AutomationGate.SetAutomationEnabled")
	span.SetAttributes(attribute.String("contact.id", contactID), attribute.Bool("automation.enabled", enabled))
	defer func() { endSpan(span, err) }()

	id, err := requireContactID(contactID)
	if err != nil {
		return nil, err
	}
	contact, err := g.contacts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor == "" {
		actor = actorFrom(ctx)
	}

	qs, err := g.qualifications.Upsert(ctx, &model.QualificationStatus{
		ContactID:              contact.ID,
		AutomationEnabled:      enabled,
		AutomationChangeReason: optional(reason),
		UpdatedBy:              optional(actor),
		UpdatedAt:              g.now(),
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordAutomationToggle(enabled)

	log := logger.FromContextOr(ctx, g.logger).With(zap.String("contact_id", contact.ID))
	log.Info("automation flag updated", zap.Bool("automation_enabled", enabled), zap.String("actor", actor))

	if !enabled {
		if _, err := g.lifecycle.disableAutomation(ctx, contact.ID); err != nil {
			metrics.RecordSecondaryWriteFailure("automation_cascade")
			log.Warn("failed to pause conversation after disabling automation", zap.Error(err))
		}
	}

	eventType := model.EventAutomationDisabled
	if enabled {
		eventType = model.EventAutomationEnabled
	}
	g.events.Publish(ctx, newEvent(eventType, contact.ID, "", reason, map[string]any{"actor": actor}))

	return &model.AutomationToggleResponse{
		Success:             true,
		ContactID:           contact.ID,
		AutomationEnabled:   qs.AutomationEnabled,
		QualificationStatus: qs,
	}, nil
}

// GetAutomationStatus reads the flag. A contact without a row reports false.
func (g *AutomationGate) GetAutomationStatus(ctx context.Context, contactID string) (*model.AutomationStatusResponse, error) {
	id, err := requireContactID(contactID)
	if err != nil {
		return nil, err
	}

	qs, err := g.qualifications.FindByContactID(ctx, id)
	if err != nil {
		return nil, err
	}

	return &model.AutomationStatusResponse{
		ContactID:           id,
		AutomationEnabled:   model.AutomationStateOf(qs).Enabled(),
		QualificationStatus: qs,
	}, nil
}

// IsAutomationPermitted reports whether automation is explicitly enabled and
// the current conversation is active. Both are read fresh on every call.
func (g *AutomationGate) IsAutomationPermitted(ctx context.Context, contactID string) (bool, error) {
	id, err := requireContactID(contactID)
	if err != nil {
		return false, err
	}

	qs, err := g.qualifications.FindByContactID(ctx, id)
	if err != nil {
		return false, err
	}
	if !model.AutomationStateOf(qs).Enabled() {
		return false, nil
	}

	conv, err := g.conversations.FindCurrentByContact(ctx, id)
	if err != nil {
		return false, err
	}
	return model.StatusOf(conv) == model.StatusActive, nil
}
